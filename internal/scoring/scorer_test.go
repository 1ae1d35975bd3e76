package scoring

import (
	"reflect"
	"testing"

	"screener-alerts/internal/market"
	"screener-alerts/internal/snapshot"
)

func bullishBreakoutSnap() snapshot.FeatureSnapshot {
	return snapshot.FeatureSnapshot{
		Symbol: "AAPL",
		Market: market.US,
		Patterns: map[string]snapshot.PatternBias{
			"Hammer":       snapshot.PatternBullish,
			"Morning Star": snapshot.PatternBullish,
			"Piercing":     snapshot.PatternBullish,
		},
		Trend: snapshot.TrendFlags{
			EMABullish:  true,
			MACDBullish: true,
			Breakout:    true,
			HighVolume:  true,
		},
	}
}

func TestScoreBullishBreakout(t *testing.T) {
	scorer := New(DefaultConfig())
	res := scorer.Score(bullishBreakoutSnap())

	// trend 1 + macd 1 + breakout 2 + patterns capped at 2 + volume 1 = 7
	// of a max one-sided total of 11, rescaled onto [1,10].
	if res.Score != 7 {
		t.Fatalf("expected score 7, got %d", res.Score)
	}
	if res.Direction != Bullish {
		t.Fatalf("expected Bullish, got %s", res.Direction)
	}
	if res.Setup != "Bull Call Spread" {
		t.Fatalf("expected Bull Call Spread, got %s", res.Setup)
	}
	if len(res.Patterns) != 3 {
		t.Fatalf("expected 3 matched patterns, got %v", res.Patterns)
	}
	if res.Rationale[0] != "Breakout" {
		t.Fatalf("strongest criterion should lead the rationale, got %v", res.Rationale)
	}
	if res.Confidence <= 0 || res.Confidence > 100 {
		t.Fatalf("confidence out of range: %f", res.Confidence)
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := New(DefaultConfig())
	first := scorer.Score(bullishBreakoutSnap())
	second := scorer.Score(bullishBreakoutSnap())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same snapshot produced different results:\n%+v\n%+v", first, second)
	}
}

func TestScoreBearishBelowMidBand(t *testing.T) {
	scorer := New(DefaultConfig())
	res := scorer.Score(snapshot.FeatureSnapshot{
		Symbol:     "TSLA",
		Market:     market.US,
		Indicators: map[string]float64{"RSI": 75},
		Trend: snapshot.TrendFlags{
			EMABearish:  true,
			MACDBearish: true,
		},
	})

	if res.Direction != Bearish {
		t.Fatalf("expected Bearish, got %s", res.Direction)
	}
	if res.Score != 3 {
		t.Fatalf("expected score 3, got %d", res.Score)
	}
	if res.Setup != SetupNone {
		t.Fatalf("score below the mid band must not map to a setup, got %s", res.Setup)
	}
	if len(res.Patterns) != 0 {
		t.Fatalf("no patterns detected, got %v", res.Patterns)
	}
}

func TestDirectionMarginYieldsNeutral(t *testing.T) {
	scorer := New(DefaultConfig())
	res := scorer.Score(snapshot.FeatureSnapshot{
		Symbol: "MSFT",
		Market: market.US,
		Trend:  snapshot.TrendFlags{EMABullish: true},
	})

	// A single unit of edge does not clear the default margin of 1.
	if res.Direction != Neutral {
		t.Fatalf("expected Neutral, got %s", res.Direction)
	}
	if res.Patterns != nil {
		t.Fatalf("neutral alerts carry no matched patterns, got %v", res.Patterns)
	}
}

func TestVolumeNeverCreatesDirection(t *testing.T) {
	scorer := New(DefaultConfig())
	res := scorer.Score(snapshot.FeatureSnapshot{
		Symbol: "NVDA",
		Market: market.US,
		Trend:  snapshot.TrendFlags{HighVolume: true},
	})

	if res.Direction != Neutral {
		t.Fatalf("volume alone must not set a direction, got %s", res.Direction)
	}
	if len(res.Rationale) != 0 {
		t.Fatalf("volume alone must not contribute, got %v", res.Rationale)
	}
}

func TestScoreBounds(t *testing.T) {
	scorer := New(DefaultConfig())

	empty := scorer.Score(snapshot.FeatureSnapshot{Symbol: "X", Market: market.US})
	if empty.Score != 1 {
		t.Fatalf("empty snapshot should bottom out at 1, got %d", empty.Score)
	}

	everything := scorer.Score(snapshot.FeatureSnapshot{
		Symbol:     "Y",
		Market:     market.US,
		Indicators: map[string]float64{"RSI": 20},
		Patterns: map[string]snapshot.PatternBias{
			"Hammer":    snapshot.PatternBullish,
			"Doji Star": snapshot.PatternBullish,
		},
		Trend: snapshot.TrendFlags{
			EMABullish:     true,
			MACDBullish:    true,
			BelowLowerBand: true,
			StrongTrendADX: true,
			Breakout:       true,
			NearSupport:    true,
			HighVolume:     true,
		},
	})
	if everything.Score != 10 {
		t.Fatalf("a full sweep of bullish criteria should score 10, got %d", everything.Score)
	}
	if everything.Confidence != 100 {
		t.Fatalf("one-sided sweep should max confidence, got %f", everything.Confidence)
	}
}

func TestSetupTable(t *testing.T) {
	cfg := DefaultConfig()
	scorer := New(cfg)

	cases := []struct {
		name      string
		direction Direction
		score     int
		highVol   bool
		want      Setup
	}{
		{"bullish high band low vol", Bullish, 8, false, "Bull Call Spread"},
		{"bullish high band high vol", Bullish, 8, true, "Bull Put Spread"},
		{"bearish high band low vol", Bearish, 9, false, "Bear Put Spread"},
		{"bearish high band high vol", Bearish, 9, true, "Bear Call Spread"},
		{"mid band", Bullish, 5, false, "Iron Condor"},
		{"neutral high band", Neutral, 8, false, "Iron Condor"},
		{"below mid band", Bullish, 3, false, SetupNone},
	}
	for _, tc := range cases {
		if got := scorer.setup(tc.direction, tc.score, tc.highVol); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
