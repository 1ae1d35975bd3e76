package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"screener-alerts/internal/alert"
	"screener-alerts/internal/market"
	"screener-alerts/internal/scoring"
)

var (
	// ErrRecordNotFound indicates a tracking update addressed a key that
	// was never saved.
	ErrRecordNotFound = errors.New("history: record not found")
	// ErrInvalidOffset indicates a tracking offset outside the window.
	ErrInvalidOffset = errors.New("history: invalid tracking offset")
	// ErrStorageUnavailable wraps any persistence-layer failure. Callers
	// may retry with backoff.
	ErrStorageUnavailable = errors.New("history: storage unavailable")
)

// Status is the tracking lifecycle state of a record.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Key identifies one persisted record.
type Key struct {
	Market market.Market
	Date   time.Time // evaluation date, UTC midnight
	Symbol string
}

// KeyOf derives the storage key for an alert.
func KeyOf(a alert.Alert) Key {
	return Key{Market: a.Market, Date: a.Date, Symbol: a.Symbol}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Market, k.Date.Format("2006-01-02"), k.Symbol)
}

// Record is one persisted alert plus its tracking state. Offset 0 holds
// the price at alert time; offsets 1..window are filled in by the
// performance tracker as closes arrive.
type Record struct {
	SchemaVersion int                     `json:"schema_version"`
	Alert         alert.Alert             `json:"alert"`
	Samples       map[int]decimal.Decimal `json:"samples"`
	MaxFavorable  decimal.Decimal         `json:"max_favorable"`
	MaxAdverse    decimal.Decimal         `json:"max_adverse"`
	Status        Status                  `json:"status"`
	LosingSteam   bool                    `json:"losing_steam"`
}

// SchemaVersion is the current persisted record layout. Readers of older
// records apply zero-value defaults for absent fields.
const SchemaVersion = 1

// NewRecord creates the record persisted at save time, seeding offset 0
// with the price at alert.
func NewRecord(a alert.Alert) Record {
	return Record{
		SchemaVersion: SchemaVersion,
		Alert:         a,
		Samples:       map[int]decimal.Decimal{0: a.Price},
		MaxFavorable:  a.Price,
		MaxAdverse:    a.Price,
		Status:        StatusActive,
	}
}

// ApplySample records the close price at an elapsed trading-day offset
// and recomputes the derived tracking fields. window is the configured
// tracking bound; reaching it closes the record. The receiver is left
// unchanged on error.
func (r *Record) ApplySample(offset, window int, price decimal.Decimal) error {
	if offset < 0 || offset > window {
		return fmt.Errorf("%w: offset %d outside [0,%d]", ErrInvalidOffset, offset, window)
	}

	if r.Samples == nil {
		r.Samples = map[int]decimal.Decimal{}
	}
	r.Samples[offset] = price
	r.recompute(window)
	return nil
}

func (r *Record) recompute(window int) {
	offsets := r.SampleOffsets()

	high := r.Alert.Price
	low := r.Alert.Price
	for _, off := range offsets {
		p := r.Samples[off]
		if p.GreaterThan(high) {
			high = p
		}
		if p.LessThan(low) {
			low = p
		}
	}
	if r.Alert.Direction == scoring.Bearish {
		r.MaxFavorable, r.MaxAdverse = low, high
	} else {
		r.MaxFavorable, r.MaxAdverse = high, low
	}

	r.LosingSteam = losingSteam(r.returnsByOffset(offsets))

	if len(offsets) > 0 && offsets[len(offsets)-1] >= window {
		r.Status = StatusClosed
	}
}

// SampleOffsets lists recorded offsets in ascending order.
func (r Record) SampleOffsets() []int {
	offsets := make([]int, 0, len(r.Samples))
	for off := range r.Samples {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	return offsets
}

// ReturnPct is the direction-adjusted percent return at the most recent
// sampled offset.
func (r Record) ReturnPct() decimal.Decimal {
	offsets := r.SampleOffsets()
	if len(offsets) == 0 || r.Alert.Price.IsZero() {
		return decimal.Zero
	}
	latest := r.Samples[offsets[len(offsets)-1]]
	return returnPct(r.Alert.Price, latest, r.Alert.Direction)
}

// MaxDrawdownPct is the worst direction-adjusted excursion sampled so far.
func (r Record) MaxDrawdownPct() decimal.Decimal {
	if r.Alert.Price.IsZero() {
		return decimal.Zero
	}
	return returnPct(r.Alert.Price, r.MaxAdverse, r.Alert.Direction)
}

// MaxGainPct is the best direction-adjusted excursion sampled so far.
func (r Record) MaxGainPct() decimal.Decimal {
	if r.Alert.Price.IsZero() {
		return decimal.Zero
	}
	return returnPct(r.Alert.Price, r.MaxFavorable, r.Alert.Direction)
}

func (r Record) returnsByOffset(offsets []int) []decimal.Decimal {
	if r.Alert.Price.IsZero() {
		return nil
	}
	returns := make([]decimal.Decimal, 0, len(offsets))
	for _, off := range offsets {
		returns = append(returns, returnPct(r.Alert.Price, r.Samples[off], r.Alert.Direction))
	}
	return returns
}

func returnPct(entry, price decimal.Decimal, direction scoring.Direction) decimal.Decimal {
	raw := price.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100))
	if direction == scoring.Bearish {
		return raw.Neg()
	}
	return raw
}

// losingSteam flags momentum fading before reversal: the two most recent
// steps each show a strictly decreasing Return% that is still positive.
func losingSteam(returns []decimal.Decimal) bool {
	n := len(returns)
	if n < 3 {
		return false
	}
	last, prev, before := returns[n-1], returns[n-2], returns[n-3]
	return last.IsPositive() && last.LessThan(prev) && prev.LessThan(before)
}

// SchedulerState records, per market, which symbols were auto-saved on
// the last completed run. It is the sole de-duplication authority for
// the scheduler's fast path.
type SchedulerState struct {
	SchemaVersion int      `json:"schema_version"`
	LastSavedDate string   `json:"last_saved_date"` // YYYY-MM-DD, empty if never run
	SavedSymbols  []string `json:"saved_symbols"`
}

// HasSaved reports whether symbol was already saved for date.
func (s SchedulerState) HasSaved(date time.Time, symbol string) bool {
	if s.LastSavedDate != date.Format("2006-01-02") {
		return false
	}
	for _, sym := range s.SavedSymbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// MarkSaved adds symbol to the saved-set for date, resetting the set when
// the date rolls over. A symbol appears at most once.
func (s *SchedulerState) MarkSaved(date time.Time, symbol string) {
	day := date.Format("2006-01-02")
	if s.LastSavedDate != day {
		s.LastSavedDate = day
		s.SavedSymbols = nil
	}
	for _, sym := range s.SavedSymbols {
		if sym == symbol {
			return
		}
	}
	s.SavedSymbols = append(s.SavedSymbols, symbol)
}

// Store is the persistence contract for the alert ledger and scheduler
// state. Implementations must make Save idempotent per key and surface
// backend failures as ErrStorageUnavailable.
type Store interface {
	// Save persists the alert as a new record. It returns false without
	// error when a record already exists for the alert's key.
	Save(ctx context.Context, a alert.Alert) (saved bool, err error)
	// Load returns all records for a (market, day) in insertion order.
	Load(ctx context.Context, m market.Market, date time.Time) ([]Record, error)
	// LoadRange returns records with evaluation dates in [start, end].
	LoadRange(ctx context.Context, m market.Market, start, end time.Time) ([]Record, error)
	// UpdateTracking appends or overwrites the price sample at offset for
	// one record and recomputes its derived fields.
	UpdateTracking(ctx context.Context, key Key, offset int, price decimal.Decimal) error
	// GetSchedulerState loads the market's scheduler state, returning a
	// zero state when none was persisted yet.
	GetSchedulerState(ctx context.Context, m market.Market) (SchedulerState, error)
	// SetSchedulerState persists the market's scheduler state.
	SetSchedulerState(ctx context.Context, m market.Market, state SchedulerState) error
	// ClearOld removes records older than the cutoff, returning the count.
	ClearOld(ctx context.Context, m market.Market, olderThan time.Time) (int, error)
}
