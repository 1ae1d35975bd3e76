package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/history"
	"screener-alerts/internal/market"
	"screener-alerts/internal/scoring"
)

// 2026-03-10 is a Tuesday; the US session closes 16:00 New York, which
// is 20:00 UTC under daylight saving.
var (
	tradingDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	beforeClose = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	afterClose  = time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	saturday    = time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
)

func newTestScheduler(t *testing.T) (*Scheduler, history.Store) {
	t.Helper()
	store, err := history.NewFileStore(t.TempDir(), 20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	calendar := market.NewSessionCalendar(market.DefaultSessions())
	return New(store, calendar, Options{MinAutoSaveScore: 5}, zerolog.Nop()), store
}

func dayAlert(symbol string, score int) alert.Alert {
	return alert.Alert{
		Symbol:    symbol,
		Market:    market.US,
		Date:      tradingDate,
		Score:     score,
		Direction: scoring.Bullish,
		Setup:     "Bull Call Spread",
		Price:     decimal.NewFromInt(100),
	}
}

func TestTickBeforeCloseDoesNothing(t *testing.T) {
	sched, store := newTestScheduler(t)
	ctx := context.Background()

	transition, err := sched.Tick(ctx, market.US, beforeClose, []alert.Alert{dayAlert("AAPL", 9)})
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if transition.State != BeforeClose {
		t.Fatalf("expected BeforeClose, got %s", transition.State)
	}

	records, err := store.Load(ctx, market.US, tradingDate)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatal("nothing may be persisted before the close")
	}
}

func TestTickOnNonTradingDay(t *testing.T) {
	sched, _ := newTestScheduler(t)

	transition, err := sched.Tick(context.Background(), market.US, saturday, []alert.Alert{dayAlert("AAPL", 9)})
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if transition.State != BeforeClose {
		t.Fatalf("weekends stay in BeforeClose, got %s", transition.State)
	}
}

func TestTickSavePassFiltersAndPersists(t *testing.T) {
	sched, store := newTestScheduler(t)
	ctx := context.Background()

	otherDay := dayAlert("MSFT", 9)
	otherDay.Date = tradingDate.AddDate(0, 0, -1)

	alerts := []alert.Alert{
		dayAlert("AAPL", 8),
		dayAlert("TSLA", 3), // below the score floor
		otherDay,            // stale evaluation date
	}

	transition, err := sched.Tick(ctx, market.US, afterClose, alerts)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if transition.State != Saved {
		t.Fatalf("expected Saved, got %s", transition.State)
	}
	if transition.Saved != 1 || transition.BelowMin != 1 {
		t.Fatalf("unexpected counts: %+v", transition)
	}
	if !transition.TradingDate.Equal(tradingDate) {
		t.Fatalf("unexpected trading date: %s", transition.TradingDate)
	}

	records, err := store.Load(ctx, market.US, tradingDate)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 || records[0].Alert.Symbol != "AAPL" {
		t.Fatalf("expected only the qualifying alert, got %+v", records)
	}

	state, err := store.GetSchedulerState(ctx, market.US)
	if err != nil {
		t.Fatalf("GetSchedulerState failed: %v", err)
	}
	if !state.HasSaved(tradingDate, "AAPL") {
		t.Fatalf("saved-set not persisted: %+v", state)
	}
}

func TestTickIsIdempotentPerTradingDate(t *testing.T) {
	sched, store := newTestScheduler(t)
	ctx := context.Background()
	alerts := []alert.Alert{dayAlert("AAPL", 8)}

	first, err := sched.Tick(ctx, market.US, afterClose, alerts)
	if err != nil {
		t.Fatalf("first Tick failed: %v", err)
	}
	if first.Saved != 1 {
		t.Fatalf("first tick should save, got %+v", first)
	}

	second, err := sched.Tick(ctx, market.US, afterClose.Add(time.Hour), alerts)
	if err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}
	if second.State != Saved || second.Saved != 0 {
		t.Fatalf("second tick must be a no-op, got %+v", second)
	}

	records, err := store.Load(ctx, market.US, tradingDate)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("double tick must not duplicate records, got %d", len(records))
	}
}

func TestTickDefaultsScoreFloor(t *testing.T) {
	store, err := history.NewFileStore(t.TempDir(), 20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	calendar := market.NewSessionCalendar(market.DefaultSessions())
	sched := New(store, calendar, Options{}, zerolog.Nop())

	transition, err := sched.Tick(context.Background(), market.US, afterClose, []alert.Alert{dayAlert("AAPL", 4)})
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if transition.BelowMin != 1 || transition.Saved != 0 {
		t.Fatalf("zero options should fall back to a floor of 5, got %+v", transition)
	}
}
