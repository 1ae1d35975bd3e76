package app

import (
	"context"
	"errors"
	"time"

	"screener-alerts/internal/alert"
)

// saveStore is the slice of history.Store that backfill needs; nil in
// dry-run mode.
type saveStore interface {
	Save(ctx context.Context, a alert.Alert) (bool, error)
}

// Backfill scores historical snapshot days across a date range and
// saves the qualifying alerts. Saves go through the store directly,
// bypassing the scheduler's close-time gate; idempotency still holds
// because Save ignores keys that already exist.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	from := dayStartUTC(opts.From)
	to := dayStartUTC(opts.To)
	if from.After(to) {
		return errors.New("backfill range is empty, check --from/--to")
	}

	var store saveStore
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be persisted")
	} else {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
		store = s
	}

	calendar := a.newCalendar()
	minScore := a.Config.Scheduler.MinAutoSaveScore

	days := 0
	saved := 0
	skipped := 0
	belowMin := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !calendar.IsTradingDay(opts.Market, day) {
			continue
		}

		alerts, err := a.scoreDay(ctx, opts.Market, day)
		if err != nil {
			a.Logger.Error().Err(err).Time("day", day).Msg("backfill day failed")
			return err
		}
		if len(alerts) == 0 {
			continue
		}
		days++

		for _, al := range alerts {
			if al.Score < minScore {
				belowMin++
				continue
			}
			if store == nil {
				saved++
				continue
			}
			ok, err := store.Save(ctx, al)
			if err != nil {
				return err
			}
			if ok {
				saved++
			} else {
				skipped++
			}
		}
	}

	a.Logger.Info().
		Str("market", opts.Market.String()).
		Int("days", days).
		Int("saved", saved).
		Int("skipped", skipped).
		Int("below_min", belowMin).
		Msg("backfill completed")
	return nil
}

func dayStartUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
