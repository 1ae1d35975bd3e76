package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/history"
	"screener-alerts/internal/market"
	"screener-alerts/internal/provider"
	"screener-alerts/internal/scoring"
)

// 2026-03-09 is a Monday, 2026-03-13 the Friday of the same week: four
// elapsed trading days.
var (
	alertDate = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	friday    = time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
)

type fakePrices struct {
	closes map[string]decimal.Decimal
}

func (f *fakePrices) GetClose(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, error) {
	price, ok := f.closes[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", provider.ErrPriceUnavailable, symbol)
	}
	return price, nil
}

func trackedAlert(symbol string, direction scoring.Direction) alert.Alert {
	return alert.Alert{
		Symbol:    symbol,
		Market:    market.US,
		Date:      alertDate,
		Score:     7,
		Direction: direction,
		Price:     decimal.NewFromInt(100),
	}
}

func newTestTracker(t *testing.T, prices *fakePrices) (*Tracker, history.Store) {
	t.Helper()
	store, err := history.NewFileStore(t.TempDir(), 20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	calendar := market.NewSessionCalendar(market.DefaultSessions())
	return New(store, prices, calendar, Options{TrackingWindow: 20}, zerolog.Nop()), store
}

func TestUpdateTrackingAppliesElapsedOffset(t *testing.T) {
	prices := &fakePrices{closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(110)}}
	tracker, store := newTestTracker(t, prices)
	ctx := context.Background()

	if _, err := store.Save(ctx, trackedAlert("AAPL", scoring.Bullish)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	results, err := tracker.UpdateTracking(ctx, market.US, friday)
	if err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.Offset != 4 {
		t.Fatalf("Monday to Friday is 4 trading days, got %d", res.Offset)
	}
	if !res.ReturnPct.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected +10%% return, got %s", res.ReturnPct)
	}
	if res.Closed {
		t.Fatal("offset 4 of 20 must not close the record")
	}
	if res.LosingSteam {
		t.Fatal("a single positive sample is not losing steam")
	}

	records, err := store.Load(ctx, market.US, alertDate)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !records[0].Samples[4].Equal(decimal.NewFromInt(110)) {
		t.Fatalf("sample not persisted at offset 4: %+v", records[0].Samples)
	}
}

func TestUpdateTrackingSkipsUnpricedRecords(t *testing.T) {
	prices := &fakePrices{closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(105)}}
	tracker, store := newTestTracker(t, prices)
	ctx := context.Background()

	if _, err := store.Save(ctx, trackedAlert("AAPL", scoring.Bullish)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Save(ctx, trackedAlert("MISS", scoring.Bullish)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	results, err := tracker.UpdateTracking(ctx, market.US, friday)
	if err != nil {
		t.Fatalf("a missing price must not abort the pass: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var missed, updated int
	for _, res := range results {
		if res.Err != nil {
			if !errors.Is(res.Err, provider.ErrPriceUnavailable) {
				t.Fatalf("unexpected error kind: %v", res.Err)
			}
			missed++
			continue
		}
		updated++
	}
	if missed != 1 || updated != 1 {
		t.Fatalf("expected one skip and one update, got missed=%d updated=%d", missed, updated)
	}
}

func TestUpdateTrackingIgnoresClosedRecords(t *testing.T) {
	prices := &fakePrices{closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(105)}}
	tracker, store := newTestTracker(t, prices)
	ctx := context.Background()

	a := trackedAlert("AAPL", scoring.Bullish)
	if _, err := store.Save(ctx, a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Closing sample at the window bound.
	if err := store.UpdateTracking(ctx, history.KeyOf(a), 20, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}

	results, err := tracker.UpdateTracking(ctx, market.US, friday)
	if err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("closed records must be skipped, got %d results", len(results))
	}
}

func TestWindowClamping(t *testing.T) {
	store, err := history.NewFileStore(t.TempDir(), 20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	calendar := market.NewSessionCalendar(market.DefaultSessions())

	low := New(store, &fakePrices{}, calendar, Options{TrackingWindow: 1}, zerolog.Nop())
	if low.Window() != 5 {
		t.Fatalf("window below 5 must clamp up, got %d", low.Window())
	}
	high := New(store, &fakePrices{}, calendar, Options{TrackingWindow: 60}, zerolog.Nop())
	if high.Window() != 20 {
		t.Fatalf("window above 20 must clamp down, got %d", high.Window())
	}
}

func TestSummarizeCountsWinnersAndLosers(t *testing.T) {
	prices := &fakePrices{}
	tracker, store := newTestTracker(t, prices)
	ctx := context.Background()

	winner := trackedAlert("WIN", scoring.Bullish)
	loser := trackedAlert("LOSE", scoring.Bearish)
	flat := trackedAlert("FLAT", scoring.Bullish)
	for _, a := range []alert.Alert{winner, loser, flat} {
		if _, err := store.Save(ctx, a); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	// +10% for the winner, -8% direction-adjusted for the bearish loser
	// (price rose against the call), +1% for the flat one.
	if err := store.UpdateTracking(ctx, history.KeyOf(winner), 4, decimal.NewFromInt(110)); err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}
	if err := store.UpdateTracking(ctx, history.KeyOf(loser), 4, decimal.NewFromInt(108)); err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}
	if err := store.UpdateTracking(ctx, history.KeyOf(flat), 4, decimal.NewFromInt(101)); err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}

	summary, err := tracker.Summarize(ctx, market.US, friday, 1)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalAlerts != 3 {
		t.Fatalf("expected 3 alerts, got %d", summary.TotalAlerts)
	}
	if summary.Winners != 1 || summary.Losers != 1 {
		t.Fatalf("expected 1 winner and 1 loser at the 5%% threshold, got %+v", summary)
	}
	bullish := summary.ByDirection[scoring.Bullish]
	if bullish.Count != 2 {
		t.Fatalf("expected 2 bullish alerts, got %d", bullish.Count)
	}
}
