// Package scheduler gates the once-per-day persistence of computed
// alerts behind each market's close. It keeps no timer of its own: Tick
// is invoked externally (UI refresh, cron) and re-derives the state
// machine position from persisted SchedulerState every call.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/history"
	"screener-alerts/internal/market"
)

// State is the scheduler's position for one market on one trading date.
type State string

const (
	// BeforeClose: the close has not been reached, or the date is not a
	// trading day. Never an error.
	BeforeClose State = "BeforeClose"
	// ClosePending: the close has passed and a save pass is due.
	ClosePending State = "ClosePending"
	// Saved: today's save pass completed.
	Saved State = "Saved"
)

// Transition reports the outcome of one Tick invocation.
type Transition struct {
	Market      market.Market
	State       State
	TradingDate time.Time
	Saved       int // records newly persisted this tick
	Skipped     int // symbols already in the saved-set
	BelowMin    int // alerts filtered out by the score floor
}

// Options tune scheduler behaviour.
type Options struct {
	MinAutoSaveScore int `mapstructure:"min_auto_save_score"`
}

// Scheduler drives the per-market auto-save state machine.
type Scheduler struct {
	store    history.Store
	calendar market.Calendar
	minScore int
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(store history.Store, calendar market.Calendar, opts Options, logger zerolog.Logger) *Scheduler {
	minScore := opts.MinAutoSaveScore
	if minScore <= 0 {
		minScore = 5
	}
	return &Scheduler{
		store:    store,
		calendar: calendar,
		minScore: minScore,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Tick evaluates the state machine for one market at wall-clock now and,
// when a save is due, runs the save pass over today's computed alerts.
// Alerts for other markets or other dates are ignored.
func (s *Scheduler) Tick(ctx context.Context, m market.Market, now time.Time, alerts []alert.Alert) (Transition, error) {
	tradingDate, err := s.localDate(m, now)
	if err != nil {
		return Transition{}, err
	}

	transition := Transition{Market: m, State: BeforeClose, TradingDate: tradingDate}

	if !s.calendar.IsTradingDay(m, now) {
		return transition, nil
	}

	closeAt, err := s.calendar.CloseInstant(m, now)
	if err != nil {
		return Transition{}, err
	}
	if now.Before(closeAt) {
		return transition, nil
	}

	state, err := s.store.GetSchedulerState(ctx, m)
	if err != nil {
		return Transition{}, err
	}

	day := tradingDate.Format("2006-01-02")
	if state.LastSavedDate == day {
		transition.State = Saved
		return transition, nil
	}

	transition.State = ClosePending
	s.logger.Info().Str("market", m.String()).Str("date", day).Msg("close reached, running save pass")

	// New trading date: the saved-set starts empty.
	if state.LastSavedDate != day {
		state.SavedSymbols = nil
	}

	for _, a := range alerts {
		if a.Market != m || !a.Date.Equal(tradingDate) {
			continue
		}
		if a.Score < s.minScore {
			transition.BelowMin++
			continue
		}
		// Fast-path dedup on the saved-set; the store's own idempotency
		// still backstops it when the scheduler is bypassed.
		if state.HasSaved(tradingDate, a.Symbol) {
			transition.Skipped++
			continue
		}

		saved, err := s.store.Save(ctx, a)
		if err != nil {
			// State stays unpersisted so the next tick retries the pass.
			return transition, fmt.Errorf("save %s: %w", a.Key(), err)
		}
		state.MarkSaved(tradingDate, a.Symbol)
		if saved {
			transition.Saved++
		} else {
			transition.Skipped++
		}
	}

	state.LastSavedDate = day
	if err := s.store.SetSchedulerState(ctx, m, state); err != nil {
		return transition, fmt.Errorf("persist scheduler state: %w", err)
	}

	transition.State = Saved
	s.logger.Info().
		Str("market", m.String()).
		Str("date", day).
		Int("saved", transition.Saved).
		Int("skipped", transition.Skipped).
		Int("below_min", transition.BelowMin).
		Msg("save pass completed")
	return transition, nil
}

// localDate is the market-local calendar date of now, normalised to UTC
// midnight to match alert evaluation dates.
func (s *Scheduler) localDate(m market.Market, now time.Time) (time.Time, error) {
	closeAt, err := s.calendar.CloseInstant(m, now)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := closeAt.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), nil
}
