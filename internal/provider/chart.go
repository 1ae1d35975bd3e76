package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const chartPathFormat = "/v8/finance/chart/%s"

// ChartOptions parameterise the chart-endpoint price provider.
type ChartOptions struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Chart fetches daily closes from a Yahoo-style chart endpoint.
type Chart struct {
	opts    ChartOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewChart constructs a chart price provider.
func NewChart(opts ChartOptions, logger zerolog.Logger) *Chart {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Chart{
		opts:    opts,
		logger:  logger.With().Str("component", "price_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetClose returns the daily close for symbol on date.
func (c *Chart) GetClose(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	// One-day window around the session; the endpoint returns the bar
	// whose timestamp falls inside it.
	period1 := day.Unix()
	period2 := day.AddDate(0, 0, 1).Unix()

	endpoint := fmt.Sprintf(c.baseURL+chartPathFormat+"?interval=1d&period1=%d&period2=%d", symbol, period1, period2)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: build request: %v", ErrPriceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: read response: %v", ErrPriceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: status %d", ErrPriceUnavailable, symbol, resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: decode response: %v", ErrPriceUnavailable, err)
	}
	if parsed.Chart.Error != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %s", ErrPriceUnavailable, symbol, parsed.Chart.Error.Code)
	}

	for _, result := range parsed.Chart.Result {
		if len(result.Indicators.Quote) == 0 {
			continue
		}
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				return decimal.NewFromFloat(*closes[i]), nil
			}
		}
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %s: no close for %s", ErrPriceUnavailable, symbol, day.Format("2006-01-02"))
}

var _ PriceProvider = (*Chart)(nil)
