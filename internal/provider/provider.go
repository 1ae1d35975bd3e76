package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable indicates the provider has no close for the
// requested (symbol, date). Callers skip the record for the cycle
// rather than failing the whole pass.
var ErrPriceUnavailable = errors.New("provider: price unavailable")

// PriceProvider retrieves daily close prices for tracked symbols.
type PriceProvider interface {
	GetClose(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, error)
}
