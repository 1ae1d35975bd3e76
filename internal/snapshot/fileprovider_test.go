package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"screener-alerts/internal/market"
)

const dayFixture = `[
  {
    "symbol": "AAPL",
    "market": "US",
    "date": "2026-03-10T00:00:00Z",
    "indicators": {"RSI": 28.5, "ADX": 31.2},
    "patterns": {"Hammer": "bullish", "Shooting Star": "bearish"},
    "trend": {"ema_bullish": true, "breakout": true, "high_volume": true},
    "close": "187.25"
  },
  {
    "symbol": "TSLA",
    "market": "US",
    "date": "2026-03-10T00:00:00Z",
    "indicators": {"RSI": 74.0},
    "trend": {"ema_bearish": true},
    "close": "251.10"
  }
]`

func writeFixture(t *testing.T) *FileProvider {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "2026-03-10.json")
	if err := os.WriteFile(path, []byte(dayFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return NewFileProvider(dir)
}

func TestLoadDay(t *testing.T) {
	provider := writeFixture(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	snaps, err := provider.LoadDay(context.Background(), date)
	if err != nil {
		t.Fatalf("LoadDay failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	aapl := snaps[0]
	if aapl.Symbol != "AAPL" || aapl.Market != market.US {
		t.Fatalf("identity lost: %+v", aapl)
	}
	if rsi, ok := aapl.Indicator("RSI"); !ok || rsi != 28.5 {
		t.Fatalf("indicator lost: %f %t", rsi, ok)
	}
	if !aapl.Trend.EMABullish || !aapl.Trend.Breakout {
		t.Fatalf("trend flags lost: %+v", aapl.Trend)
	}
	if got := aapl.BullishPatterns(); len(got) != 1 || got[0] != "Hammer" {
		t.Fatalf("unexpected bullish patterns: %v", got)
	}
	if got := aapl.BearishPatterns(); len(got) != 1 || got[0] != "Shooting Star" {
		t.Fatalf("unexpected bearish patterns: %v", got)
	}
}

func TestGetSnapshot(t *testing.T) {
	provider := writeFixture(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	snap, err := provider.GetSnapshot(context.Background(), "TSLA", date)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.Symbol != "TSLA" {
		t.Fatalf("wrong snapshot: %+v", snap)
	}

	if _, err := provider.GetSnapshot(context.Background(), "NVDA", date); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("unknown symbol should be ErrNotAvailable, got %v", err)
	}
}

func TestLoadDayMissingFile(t *testing.T) {
	provider := NewFileProvider(t.TempDir())
	_, err := provider.LoadDay(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("missing day file should be ErrNotAvailable, got %v", err)
	}
}
