package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"screener-alerts/internal/history"
	"screener-alerts/internal/market"
	"screener-alerts/internal/provider"
	"screener-alerts/internal/scoring"
)

// Options tune the performance tracker.
type Options struct {
	// TrackingWindow is the number of trading days an alert is measured
	// before it closes. Valid range 5-20.
	TrackingWindow int `mapstructure:"tracking_window"`
}

// UpdateResult reports the outcome of one record's tracking update.
type UpdateResult struct {
	Key         history.Key
	Offset      int
	Price       decimal.Decimal
	ReturnPct   decimal.Decimal
	Closed      bool
	LosingSteam bool
	Err         error // non-nil when the record was skipped this cycle
}

// Tracker walks active records forward as daily closes arrive.
type Tracker struct {
	store    history.Store
	prices   provider.PriceProvider
	calendar market.Calendar
	window   int
	logger   zerolog.Logger
}

// New constructs a Tracker. The window is clamped into the 5-20 range.
func New(store history.Store, prices provider.PriceProvider, calendar market.Calendar, opts Options, logger zerolog.Logger) *Tracker {
	window := opts.TrackingWindow
	if window < 5 {
		window = 5
	}
	if window > 20 {
		window = 20
	}
	return &Tracker{
		store:    store,
		prices:   prices,
		calendar: calendar,
		window:   window,
		logger:   logger.With().Str("component", "tracker").Logger(),
	}
}

// Window returns the configured tracking window in trading days.
func (t *Tracker) Window() int {
	return t.window
}

// UpdateTracking fetches the asOf close for every active record inside
// the tracking window and applies it at the record's elapsed offset. A
// single record's price failure is recorded in its result and does not
// stop the pass; storage failures abort with partial results.
func (t *Tracker) UpdateTracking(ctx context.Context, m market.Market, asOf time.Time) ([]UpdateResult, error) {
	// Calendar span generously covering `window` trading days.
	start := asOf.AddDate(0, 0, -(t.window*2 + 7))
	records, err := t.store.LoadRange(ctx, m, start, asOf)
	if err != nil {
		return nil, fmt.Errorf("load tracking range: %w", err)
	}

	results := make([]UpdateResult, 0, len(records))
	for _, rec := range records {
		if rec.Status == history.StatusClosed {
			continue
		}

		offset := market.TradingDaysBetween(t.calendar, m, rec.Alert.Date, asOf)
		if offset <= 0 {
			continue
		}
		if offset > t.window {
			// The record outlived its window without a final sample
			// (missed runs); the bound sample closes it now.
			offset = t.window
		}

		key := history.KeyOf(rec.Alert)
		result := UpdateResult{Key: key, Offset: offset}

		price, err := t.prices.GetClose(ctx, rec.Alert.Symbol, asOf)
		if err != nil {
			if errors.Is(err, provider.ErrPriceUnavailable) {
				t.logger.Warn().Str("symbol", rec.Alert.Symbol).Int("offset", offset).Msg("close unavailable, skipping record this cycle")
				result.Err = err
				results = append(results, result)
				continue
			}
			return results, fmt.Errorf("fetch close for %s: %w", rec.Alert.Symbol, err)
		}
		result.Price = price

		if err := t.store.UpdateTracking(ctx, key, offset, price); err != nil {
			if errors.Is(err, history.ErrStorageUnavailable) {
				return results, err
			}
			// RecordNotFound / InvalidOffset are logic errors on this
			// record only; surface them without aborting the pass.
			result.Err = err
			results = append(results, result)
			continue
		}

		updated := rec
		if err := updated.ApplySample(offset, t.window, price); err == nil {
			result.ReturnPct = updated.ReturnPct()
			result.Closed = updated.Status == history.StatusClosed
			result.LosingSteam = updated.LosingSteam
		}
		results = append(results, result)
	}

	t.logger.Info().Str("market", m.String()).Int("updated", len(results)).Msg("tracking pass completed")
	return results, nil
}

// DirectionStats aggregates performance for one direction.
type DirectionStats struct {
	Count     int
	AvgReturn float64
	WinRate   float64
}

// WeeklySummary aggregates recorded performance over the trailing weeks.
// Winners gained at least 5%, losers lost at least 5%; both thresholds
// follow the reporting convention of the historical dashboard.
type WeeklySummary struct {
	Market      market.Market
	PeriodStart time.Time
	PeriodEnd   time.Time
	TotalAlerts int
	Winners     int
	Losers      int
	WinRate     float64
	AvgReturn   float64
	LosingSteam int
	ByDirection map[scoring.Direction]DirectionStats
}

var winnerThreshold = decimal.NewFromInt(5)

// Summarize computes the weekly summary from stored samples only; it
// performs no price fetches.
func (t *Tracker) Summarize(ctx context.Context, m market.Market, asOf time.Time, weeksBack int) (WeeklySummary, error) {
	if weeksBack <= 0 {
		weeksBack = 1
	}
	start := asOf.AddDate(0, 0, -7*weeksBack)

	records, err := t.store.LoadRange(ctx, m, start, asOf)
	if err != nil {
		return WeeklySummary{}, fmt.Errorf("load summary range: %w", err)
	}

	summary := WeeklySummary{
		Market:      m,
		PeriodStart: start,
		PeriodEnd:   asOf,
		TotalAlerts: len(records),
		ByDirection: map[scoring.Direction]DirectionStats{},
	}

	returns := make([]float64, 0, len(records))
	byDirection := map[scoring.Direction][]float64{}
	for _, rec := range records {
		ret := rec.ReturnPct()
		returns = append(returns, ret.InexactFloat64())
		byDirection[rec.Alert.Direction] = append(byDirection[rec.Alert.Direction], ret.InexactFloat64())

		if ret.GreaterThanOrEqual(winnerThreshold) {
			summary.Winners++
		}
		if ret.LessThanOrEqual(winnerThreshold.Neg()) {
			summary.Losers++
		}
		if rec.LosingSteam {
			summary.LosingSteam++
		}
	}

	if len(returns) > 0 {
		summary.AvgReturn, _ = stats.Mean(returns)
		summary.WinRate = float64(summary.Winners) / float64(len(returns)) * 100
	}
	for direction, values := range byDirection {
		avg, _ := stats.Mean(values)
		wins := 0
		for _, v := range values {
			if v >= 5 {
				wins++
			}
		}
		summary.ByDirection[direction] = DirectionStats{
			Count:     len(values),
			AvgReturn: avg,
			WinRate:   float64(wins) / float64(len(values)) * 100,
		}
	}
	return summary, nil
}
