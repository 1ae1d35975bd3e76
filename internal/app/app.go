package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"screener-alerts/internal/config"
	"screener-alerts/internal/history"
	"screener-alerts/internal/market"
	"screener-alerts/internal/notify"
	"screener-alerts/internal/provider"
	"screener-alerts/internal/scheduler"
	"screener-alerts/internal/scoring"
	"screener-alerts/internal/snapshot"
	"screener-alerts/internal/tracker"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore builds the configured history backend. The returned closer
// is nil for backends without resources to release.
func (a *App) openStore(ctx context.Context) (history.Store, func(), error) {
	window := a.Config.Tracking.TrackingWindow

	switch a.Config.Storage.Backend {
	case "file":
		store, err := history.NewFileStore(a.Config.Storage.File.Dir, window)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "postgres":
		pool, err := history.NewPool(ctx, a.Config.Storage.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store, err := history.NewPostgresStore(ctx, pool, window)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case "sheets":
		store, err := history.NewSheetsStore(ctx, a.Config.Storage.Sheets, window)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", a.Config.Storage.Backend)
	}
}

func (a *App) newCalendar() market.Calendar {
	return market.NewSessionCalendar(a.Config.Sessions())
}

func (a *App) newScorer() *scoring.Scorer {
	return scoring.New(a.Config.Scoring)
}

func (a *App) newSnapshotProvider() *snapshot.FileProvider {
	return snapshot.NewFileProvider(a.Config.Snapshots.Dir)
}

func (a *App) newPriceProvider() provider.PriceProvider {
	return provider.NewChart(a.Config.Prices, a.Logger)
}

func (a *App) newScheduler(store history.Store) *scheduler.Scheduler {
	return scheduler.New(store, a.newCalendar(), a.Config.Scheduler, a.Logger)
}

func (a *App) newTracker(store history.Store) *tracker.Tracker {
	return tracker.New(store, a.newPriceProvider(), a.newCalendar(), a.Config.Tracking, a.Logger)
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Notify.Telegram.Enabled {
		return notify.NewTelegramNotifier(a.Config.Notify.Telegram, 10*time.Second, a.Logger)
	}
	return nil
}

// ScanOptions configure a single scoring pass.
type ScanOptions struct {
	Market market.Market
	Date   time.Time
	Save   bool // run the auto-save scheduler tick after scoring
}

// TrackOptions configure a tracking update pass.
type TrackOptions struct {
	Market market.Market
	AsOf   time.Time
}

// ReportOptions configure the winner analytics report.
type ReportOptions struct {
	Market  market.Market
	From    time.Time
	To      time.Time
	GroupBy string
	Weekly  bool
}

// BackfillOptions configure the historical backfill job.
type BackfillOptions struct {
	Market market.Market
	From   time.Time
	To     time.Time
	DryRun bool
}

// ExportOptions hold parameters for exporting historical performance.
type ExportOptions struct {
	Market  market.Market
	From    time.Time
	To      time.Time
	CSVPath string
	PNGPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Market market.Market
	Date   time.Time
}

// PurgeOptions configure the retention pass.
type PurgeOptions struct {
	Market market.Market
}
