package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"screener-alerts/internal/market"
)

// runInterval is how often the long-running service re-evaluates the
// scheduler and tracking passes. The scheduler itself is idempotent per
// trading date, so the cadence only bounds save latency after close.
const runInterval = 5 * time.Minute

// Run executes the long-running service: every interval it scores the
// day's snapshots, lets the scheduler decide whether a save is due, and
// advances performance tracking for every market.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := a.newScheduler(store)
	track := a.newTracker(store)
	calendar := a.newCalendar()

	a.Logger.Info().Msg("starting screener service")

	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		for _, m := range market.All() {
			alerts, err := a.scoreDay(ctx, m, localTradingDate(calendar, m, now))
			if err != nil {
				a.Logger.Error().Err(err).Str("market", m.String()).Msg("scoring pass failed")
				continue
			}

			transition, err := sched.Tick(ctx, m, now, alerts)
			if err != nil {
				a.Logger.Error().Err(err).Str("market", m.String()).Msg("scheduler tick failed")
				continue
			}
			if transition.Saved > 0 {
				a.notifySavePass(ctx, transition, alerts)
			}

			if _, err := track.UpdateTracking(ctx, m, now); err != nil {
				a.Logger.Error().Err(err).Str("market", m.String()).Msg("tracking pass failed")
			}
		}

		select {
		case <-ctx.Done():
			err := ctx.Err()
			if errors.Is(err, context.Canceled) {
				a.Logger.Info().Msg("screener service stopped")
				return nil
			}
			return err
		case <-ticker.C:
		}
	}
}

// localTradingDate is the market-local calendar date of now, normalised
// to UTC midnight to match snapshot evaluation dates.
func localTradingDate(calendar market.Calendar, m market.Market, now time.Time) time.Time {
	closeAt, err := calendar.CloseInstant(m, now)
	if err != nil {
		closeAt = now.UTC()
	}
	y, mo, d := closeAt.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
