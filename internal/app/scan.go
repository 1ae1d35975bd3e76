package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/market"
	"screener-alerts/internal/notify"
	"screener-alerts/internal/scheduler"
	"screener-alerts/internal/snapshot"
)

// Scan scores every snapshot for the given market and date, prints the
// ranked alerts, and optionally runs the auto-save scheduler tick.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	alerts, err := a.scoreDay(ctx, opts.Market, opts.Date)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots available for scan date")
		return nil
	}

	printAlerts(alerts)

	if !opts.Save {
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	transition, err := a.newScheduler(store).Tick(ctx, opts.Market, time.Now(), alerts)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("market", opts.Market.String()).
		Str("state", string(transition.State)).
		Int("saved", transition.Saved).
		Msg("scheduler tick evaluated")

	if transition.Saved > 0 {
		a.notifySavePass(ctx, transition, alerts)
	}
	return nil
}

// scoreDay builds alerts for every snapshot of a (market, date).
func (a *App) scoreDay(ctx context.Context, m market.Market, date time.Time) ([]alert.Alert, error) {
	snaps, err := a.newSnapshotProvider().LoadDay(ctx, date)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotAvailable) {
			return nil, nil
		}
		return nil, err
	}

	scorer := a.newScorer()
	alerts := make([]alert.Alert, 0, len(snaps))
	for _, snap := range snaps {
		if snap.Market != m {
			continue
		}
		result := scorer.Score(snap)
		built, err := alert.Build(snap, result)
		if err != nil {
			a.Logger.Warn().Err(err).Str("symbol", snap.Symbol).Msg("skipping malformed snapshot")
			continue
		}
		alerts = append(alerts, built)
	}

	// Highest conviction first; stable for equal scores.
	sortAlertsByScore(alerts)
	return alerts, nil
}

func (a *App) notifySavePass(ctx context.Context, transition scheduler.Transition, alerts []alert.Alert) {
	notifier := a.newNotifier()
	if notifier == nil {
		return
	}
	note := notify.Notification{
		Market:      transition.Market,
		TradingDate: transition.TradingDate,
		Saved:       transition.Saved,
		Skipped:     transition.Skipped,
		TopAlerts:   alerts,
	}
	if err := notifier.Notify(ctx, note); err != nil {
		a.Logger.Error().Err(err).Msg("failed to dispatch save summary")
	}
}

func sortAlertsByScore(alerts []alert.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Score > alerts[j].Score
	})
}

func printAlerts(alerts []alert.Alert) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tDirection\tScore\tConfidence\tSetup\tPatterns\tRationale")
	for _, a := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%.0f\t%s\t%s\t%s\n",
			a.Symbol,
			a.Direction,
			a.Score,
			a.Confidence,
			a.Setup,
			strings.Join(a.Patterns, ","),
			strings.Join(firstN(a.Rationale, 3), ","),
		)
	}
	writer.Flush()
}

func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
