package history

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/market"
	"screener-alerts/internal/scoring"
)

func testAlert(symbol string, direction scoring.Direction, price int64) alert.Alert {
	return alert.Alert{
		Symbol:    symbol,
		Market:    market.US,
		Date:      time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Score:     7,
		Direction: direction,
		Setup:     "Bull Call Spread",
		Price:     decimal.NewFromInt(price),
		CreatedAt: time.Date(2026, 3, 9, 21, 0, 0, 0, time.UTC),
	}
}

func TestNewRecordSeedsEntrySample(t *testing.T) {
	rec := NewRecord(testAlert("AAPL", scoring.Bullish, 100))
	if rec.Status != StatusActive {
		t.Fatalf("new records start active, got %s", rec.Status)
	}
	if !rec.Samples[0].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("offset 0 should hold the entry price, got %s", rec.Samples[0])
	}
	if !rec.ReturnPct().IsZero() {
		t.Fatalf("entry-only record has zero return, got %s", rec.ReturnPct())
	}
}

func TestApplySampleTracksExcursions(t *testing.T) {
	rec := NewRecord(testAlert("AAPL", scoring.Bullish, 100))

	if err := rec.ApplySample(1, 20, decimal.NewFromInt(110)); err != nil {
		t.Fatalf("ApplySample failed: %v", err)
	}
	if err := rec.ApplySample(2, 20, decimal.NewFromInt(95)); err != nil {
		t.Fatalf("ApplySample failed: %v", err)
	}

	if got := rec.ReturnPct(); !got.Equal(decimal.NewFromInt(-5)) {
		t.Fatalf("latest return should be -5%%, got %s", got)
	}
	if got := rec.MaxGainPct(); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("max gain should be 10%%, got %s", got)
	}
	if got := rec.MaxDrawdownPct(); !got.Equal(decimal.NewFromInt(-5)) {
		t.Fatalf("max drawdown should be -5%%, got %s", got)
	}
	if rec.Status != StatusActive {
		t.Fatalf("record should stay active inside the window, got %s", rec.Status)
	}
}

func TestApplySampleBearishInvertsReturns(t *testing.T) {
	rec := NewRecord(testAlert("TSLA", scoring.Bearish, 200))

	if err := rec.ApplySample(1, 20, decimal.NewFromInt(180)); err != nil {
		t.Fatalf("ApplySample failed: %v", err)
	}
	if got := rec.ReturnPct(); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("a 10%% drop is a +10%% bearish return, got %s", got)
	}
	if !rec.MaxFavorable.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("favorable excursion for bearish is the low, got %s", rec.MaxFavorable)
	}
}

func TestApplySampleRejectsOffsetOutsideWindow(t *testing.T) {
	rec := NewRecord(testAlert("AAPL", scoring.Bullish, 100))
	before := len(rec.Samples)

	err := rec.ApplySample(25, 20, decimal.NewFromInt(120))
	if !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
	if len(rec.Samples) != before || rec.Status != StatusActive {
		t.Fatalf("record must be unchanged after a rejected sample: %+v", rec)
	}
}

func TestApplySampleClosesAtWindowBound(t *testing.T) {
	rec := NewRecord(testAlert("AAPL", scoring.Bullish, 100))
	if err := rec.ApplySample(20, 20, decimal.NewFromInt(108)); err != nil {
		t.Fatalf("ApplySample failed: %v", err)
	}
	if rec.Status != StatusClosed {
		t.Fatalf("sample at the window bound should close the record, got %s", rec.Status)
	}
}

func TestLosingSteamNeedsTwoDecliningPositiveSteps(t *testing.T) {
	rec := NewRecord(testAlert("AAPL", scoring.Bullish, 100))
	steps := []int64{106, 104, 103}
	for i, price := range steps {
		if err := rec.ApplySample(i+1, 20, decimal.NewFromInt(price)); err != nil {
			t.Fatalf("ApplySample failed: %v", err)
		}
	}
	if !rec.LosingSteam {
		t.Fatal("two consecutive declining positive returns should flag losing steam")
	}

	// A recovery clears the flag.
	if err := rec.ApplySample(4, 20, decimal.NewFromInt(107)); err != nil {
		t.Fatalf("ApplySample failed: %v", err)
	}
	if rec.LosingSteam {
		t.Fatal("a rebound must clear the losing-steam flag")
	}
}

func TestLosingSteamIgnoresNegativeReturns(t *testing.T) {
	rec := NewRecord(testAlert("AAPL", scoring.Bullish, 100))
	for i, price := range []int64{99, 97, 95} {
		if err := rec.ApplySample(i+1, 20, decimal.NewFromInt(price)); err != nil {
			t.Fatalf("ApplySample failed: %v", err)
		}
	}
	if rec.LosingSteam {
		t.Fatal("declining negative returns are a loss, not fading momentum")
	}
}

func TestSchedulerStateRollsOverByDate(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	var state SchedulerState
	state.MarkSaved(monday, "AAPL")
	state.MarkSaved(monday, "AAPL")
	state.MarkSaved(monday, "TSLA")

	if !state.HasSaved(monday, "AAPL") || !state.HasSaved(monday, "TSLA") {
		t.Fatalf("saved symbols missing: %+v", state)
	}
	if len(state.SavedSymbols) != 2 {
		t.Fatalf("symbols must appear at most once, got %v", state.SavedSymbols)
	}
	if state.HasSaved(tuesday, "AAPL") {
		t.Fatal("saved-set must not leak across dates")
	}

	state.MarkSaved(tuesday, "NVDA")
	if state.HasSaved(tuesday, "AAPL") {
		t.Fatal("date rollover must reset the saved-set")
	}
	if !state.HasSaved(tuesday, "NVDA") {
		t.Fatalf("rollover lost the new save: %+v", state)
	}
}
