package alert

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"screener-alerts/internal/market"
	"screener-alerts/internal/scoring"
	"screener-alerts/internal/snapshot"
)

// ErrInvalidSnapshot indicates a snapshot missing identity fields. It is
// a caller bug and must not be retried.
var ErrInvalidSnapshot = errors.New("alert: invalid snapshot")

// Alert is one scored, directional recommendation for a symbol on an
// evaluation date. It is immutable once built.
type Alert struct {
	Symbol     string            `json:"symbol"`
	Market     market.Market     `json:"market"`
	Date       time.Time         `json:"date"`
	Score      int               `json:"score"`
	Direction  scoring.Direction `json:"direction"`
	Confidence float64           `json:"confidence"`
	Setup      scoring.Setup     `json:"setup"`
	Patterns   []string          `json:"patterns,omitempty"`
	Rationale  []string          `json:"rationale,omitempty"`
	Price      decimal.Decimal   `json:"price"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Build stamps identity and timestamp onto a score result. Score-result
// correctness is the scorer's contract; only identity is validated here.
func Build(snap snapshot.FeatureSnapshot, res scoring.ScoreResult) (Alert, error) {
	if snap.Symbol == "" {
		return Alert{}, fmt.Errorf("%w: missing symbol", ErrInvalidSnapshot)
	}
	if snap.Market == "" {
		return Alert{}, fmt.Errorf("%w: missing market", ErrInvalidSnapshot)
	}
	if snap.Date.IsZero() {
		return Alert{}, fmt.Errorf("%w: missing evaluation date", ErrInvalidSnapshot)
	}

	return Alert{
		Symbol:     snap.Symbol,
		Market:     snap.Market,
		Date:       snap.Date.UTC().Truncate(24 * time.Hour),
		Score:      res.Score,
		Direction:  res.Direction,
		Confidence: res.Confidence,
		Setup:      res.Setup,
		Patterns:   res.Patterns,
		Rationale:  res.Rationale,
		Price:      snap.Close,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Key is the (market, date, symbol) identity used for de-duplication.
func (a Alert) Key() string {
	return fmt.Sprintf("%s/%s/%s", a.Market, a.Date.Format("2006-01-02"), a.Symbol)
}
