package scoring

import (
	"math"
	"sort"

	"screener-alerts/internal/snapshot"
)

// Direction is the directional call attached to an alert.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

// Setup is the recommended options-strategy label.
type Setup string

// SetupNone marks alerts with no actionable options setup.
const SetupNone Setup = "None"

// Config carries every tunable of the scorer. Values are injected at
// construction so tests and callers never depend on process-wide state.
type Config struct {
	Weights         Weights    `mapstructure:"weights"`
	RSIOversold     float64    `mapstructure:"rsi_oversold"`
	RSIOverbought   float64    `mapstructure:"rsi_overbought"`
	DirectionMargin float64    `mapstructure:"direction_margin"`
	HighBandMin     int        `mapstructure:"high_band_min"`
	MidBandMin      int        `mapstructure:"mid_band_min"`
	Setups          SetupTable `mapstructure:"setups"`
}

// Weights assigns a contribution to each recognised criterion.
type Weights struct {
	TrendAlignment float64 `mapstructure:"trend_alignment"`
	RSI            float64 `mapstructure:"rsi"`
	MACD           float64 `mapstructure:"macd"`
	Bollinger      float64 `mapstructure:"bollinger"`
	ADX            float64 `mapstructure:"adx"`
	Breakout       float64 `mapstructure:"breakout"`
	Volume         float64 `mapstructure:"volume"`
	PatternEach    float64 `mapstructure:"pattern_each"`
	PatternCap     float64 `mapstructure:"pattern_cap"`
	SupportResist  float64 `mapstructure:"support_resist"`
}

// SetupTable maps (direction, score band, volatility regime) to an
// options-strategy label.
type SetupTable struct {
	BullishLowVol  Setup `mapstructure:"bullish_low_vol"`
	BullishHighVol Setup `mapstructure:"bullish_high_vol"`
	BearishLowVol  Setup `mapstructure:"bearish_low_vol"`
	BearishHighVol Setup `mapstructure:"bearish_high_vol"`
	MidBand        Setup `mapstructure:"mid_band"`
}

// DefaultConfig returns the shipped weight table and setup mapping.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			TrendAlignment: 1,
			RSI:            1,
			MACD:           1,
			Bollinger:      1,
			ADX:            1,
			Breakout:       2,
			Volume:         1,
			PatternEach:    1,
			PatternCap:     2,
			SupportResist:  1,
		},
		RSIOversold:     30,
		RSIOverbought:   70,
		DirectionMargin: 1,
		HighBandMin:     7,
		MidBandMin:      4,
		Setups: SetupTable{
			BullishLowVol:  "Bull Call Spread",
			BullishHighVol: "Bull Put Spread",
			BearishLowVol:  "Bear Put Spread",
			BearishHighVol: "Bear Call Spread",
			MidBand:        "Iron Condor",
		},
	}
}

// ScoreResult is the scorer's complete verdict for one snapshot.
type ScoreResult struct {
	Score      int
	Direction  Direction
	Confidence float64
	Setup      Setup
	Patterns   []string
	Rationale  []string
}

// Scorer turns feature snapshots into ranked directional calls. It is a
// stateless, deterministic transform.
type Scorer struct {
	cfg Config
}

// New constructs a Scorer with the given configuration.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

type contribution struct {
	name  string
	value float64 // signed: positive bullish, negative bearish
	order int
}

// Score evaluates one snapshot. It never fails for a well-formed
// snapshot; absent indicator values simply contribute nothing.
func (s *Scorer) Score(snap snapshot.FeatureSnapshot) ScoreResult {
	w := s.cfg.Weights
	contribs := make([]contribution, 0, 10)
	add := func(name string, value float64) {
		if value != 0 {
			contribs = append(contribs, contribution{name: name, value: value, order: len(contribs)})
		}
	}

	// Criterion table. Insertion order is the tie-break priority for the
	// rationale, so keep it stable.
	switch {
	case snap.Trend.EMABullish:
		add("Trend Alignment", w.TrendAlignment)
	case snap.Trend.EMABearish:
		add("Trend Alignment", -w.TrendAlignment)
	}

	if rsi, ok := snap.Indicator("RSI"); ok {
		switch {
		case rsi < s.cfg.RSIOversold:
			add("RSI Oversold", w.RSI)
		case rsi > s.cfg.RSIOverbought:
			add("RSI Overbought", -w.RSI)
		}
	}

	switch {
	case snap.Trend.MACDBullish:
		add("MACD Crossover", w.MACD)
	case snap.Trend.MACDBearish:
		add("MACD Crossover", -w.MACD)
	}

	switch {
	case snap.Trend.BelowLowerBand:
		add("Bollinger Band", w.Bollinger)
	case snap.Trend.AboveUpperBand:
		add("Bollinger Band", -w.Bollinger)
	}

	if snap.Trend.StrongTrendADX {
		switch {
		case snap.Trend.EMABullish:
			add("ADX Strength", w.ADX)
		case snap.Trend.EMABearish:
			add("ADX Strength", -w.ADX)
		}
	}

	switch {
	case snap.Trend.Breakout:
		add("Breakout", w.Breakout)
	case snap.Trend.Breakdown:
		add("Breakdown", -w.Breakout)
	}

	bullPatterns := snap.BullishPatterns()
	bearPatterns := snap.BearishPatterns()
	if n := float64(len(bullPatterns)); n > 0 {
		add("Bullish Pattern", math.Min(n*w.PatternEach, w.PatternCap))
	}
	if n := float64(len(bearPatterns)); n > 0 {
		add("Bearish Pattern", -math.Min(n*w.PatternEach, w.PatternCap))
	}

	switch {
	case snap.Trend.NearSupport:
		add("Near Support", w.SupportResist)
	case snap.Trend.NearResistance:
		add("Near Resistance", -w.SupportResist)
	}

	// Volume confirms whichever side already leads; it never creates a
	// direction on its own.
	bull, bear := sumSides(contribs)
	if snap.Trend.HighVolume {
		switch {
		case bull > bear:
			add("Volume Confirmation", w.Volume)
		case bear > bull:
			add("Volume Confirmation", -w.Volume)
		}
	}

	bull, bear = sumSides(contribs)
	direction := s.direction(bull, bear)

	maxTotal := s.maxPossible()
	dominant := math.Max(bull, bear)
	score := clampScore(1 + dominant*9/maxTotal)
	confidence := math.Abs(bull-bear) / maxTotal * 100
	if confidence > 100 {
		confidence = 100
	}

	return ScoreResult{
		Score:      score,
		Direction:  direction,
		Confidence: confidence,
		Setup:      s.setup(direction, score, snap.Trend.HighVolatility),
		Patterns:   matchedPatterns(direction, bullPatterns, bearPatterns),
		Rationale:  rationale(contribs),
	}
}

func (s *Scorer) direction(bull, bear float64) Direction {
	switch {
	case bull-bear > s.cfg.DirectionMargin:
		return Bullish
	case bear-bull > s.cfg.DirectionMargin:
		return Bearish
	default:
		return Neutral
	}
}

func (s *Scorer) setup(direction Direction, score int, highVol bool) Setup {
	if score < s.cfg.MidBandMin {
		return SetupNone
	}
	if score < s.cfg.HighBandMin || direction == Neutral {
		return s.cfg.Setups.MidBand
	}
	switch direction {
	case Bullish:
		if highVol {
			return s.cfg.Setups.BullishHighVol
		}
		return s.cfg.Setups.BullishLowVol
	default:
		if highVol {
			return s.cfg.Setups.BearishHighVol
		}
		return s.cfg.Setups.BearishLowVol
	}
}

// maxPossible is the largest one-sided total the weight table allows,
// used to normalise scores onto [1,10] whatever the configured weights.
func (s *Scorer) maxPossible() float64 {
	w := s.cfg.Weights
	total := w.TrendAlignment + w.RSI + w.MACD + w.Bollinger + w.ADX +
		w.Breakout + w.Volume + w.PatternCap + w.SupportResist
	if total <= 0 {
		return 1
	}
	return total
}

func sumSides(contribs []contribution) (bull, bear float64) {
	for _, c := range contribs {
		if c.value > 0 {
			bull += c.value
		} else {
			bear += -c.value
		}
	}
	return bull, bear
}

func rationale(contribs []contribution) []string {
	sorted := make([]contribution, len(contribs))
	copy(sorted, contribs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := math.Abs(sorted[i].value), math.Abs(sorted[j].value)
		if ai != aj {
			return ai > aj
		}
		return sorted[i].order < sorted[j].order
	})
	names := make([]string, len(sorted))
	for i, c := range sorted {
		names[i] = c.name
	}
	return names
}

func matchedPatterns(direction Direction, bull, bear []string) []string {
	switch direction {
	case Bullish:
		return bull
	case Bearish:
		return bear
	default:
		return nil
	}
}

func clampScore(raw float64) int {
	score := int(math.Round(raw))
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
