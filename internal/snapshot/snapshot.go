package snapshot

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"screener-alerts/internal/market"
)

// ErrNotAvailable indicates the provider has no snapshot for the request.
var ErrNotAvailable = errors.New("snapshot: not available")

// FeatureSnapshot bundles the precomputed indicator readings for one
// symbol on one evaluation date. Indicator formulas live upstream; the
// core only consumes their outputs.
type FeatureSnapshot struct {
	Symbol     string                 `json:"symbol"`
	Market     market.Market          `json:"market"`
	Date       time.Time              `json:"date"`
	Indicators map[string]float64     `json:"indicators"`
	Patterns   map[string]PatternBias `json:"patterns"`
	Trend      TrendFlags             `json:"trend"`
	Close      decimal.Decimal        `json:"close"`
}

// PatternBias classifies a detected candlestick pattern.
type PatternBias string

const (
	PatternBullish PatternBias = "bullish"
	PatternBearish PatternBias = "bearish"
)

// TrendFlags carries the boolean trend/breakout detections.
type TrendFlags struct {
	EMABullish      bool `json:"ema_bullish"`
	EMABearish      bool `json:"ema_bearish"`
	Breakout        bool `json:"breakout"`
	Breakdown       bool `json:"breakdown"`
	HighVolume      bool `json:"high_volume"`
	HighVolatility  bool `json:"high_volatility"`
	NearSupport     bool `json:"near_support"`
	NearResistance  bool `json:"near_resistance"`
	StrongTrendADX  bool `json:"strong_trend_adx"`
	MACDBullish     bool `json:"macd_bullish"`
	MACDBearish     bool `json:"macd_bearish"`
	BelowLowerBand  bool `json:"below_lower_band"`
	AboveUpperBand  bool `json:"above_upper_band"`
}

// Indicator returns the named indicator value. Missing values are
// reported via ok so callers can treat them as a neutral contribution.
func (s FeatureSnapshot) Indicator(name string) (float64, bool) {
	v, ok := s.Indicators[name]
	return v, ok
}

// BullishPatterns lists detected bullish pattern names in sorted order.
func (s FeatureSnapshot) BullishPatterns() []string {
	return s.patternsWithBias(PatternBullish)
}

// BearishPatterns lists detected bearish pattern names in sorted order.
func (s FeatureSnapshot) BearishPatterns() []string {
	return s.patternsWithBias(PatternBearish)
}

func (s FeatureSnapshot) patternsWithBias(bias PatternBias) []string {
	names := make([]string, 0, len(s.Patterns))
	for name, b := range s.Patterns {
		if b == bias {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Provider supplies feature snapshots computed by the upstream pipeline.
type Provider interface {
	GetSnapshot(ctx context.Context, symbol string, date time.Time) (FeatureSnapshot, error)
}
