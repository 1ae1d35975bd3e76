package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const chartPayload = `{
  "chart": {
    "result": [
      {
        "timestamp": [1770645600],
        "indicators": {
          "quote": [{"close": [null, 187.41]}]
        }
      }
    ],
    "error": null
  }
}`

func TestChartGetClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v8/finance/chart/AAPL") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1d" {
			t.Fatalf("expected daily interval, got %s", r.URL.Query().Get("interval"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	chart := NewChart(ChartOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	price, err := chart.GetClose(context.Background(), "AAPL", time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetClose failed: %v", err)
	}
	if price.InexactFloat64() != 187.41 {
		t.Fatalf("expected the last non-null close, got %s", price)
	}
}

func TestChartGetCloseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	chart := NewChart(ChartOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := chart.GetClose(context.Background(), "AAPL", time.Now())
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestChartGetCloseEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	chart := NewChart(ChartOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := chart.GetClose(context.Background(), "UNKNOWN", time.Now())
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestChartGetCloseNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	chart := NewChart(ChartOptions{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := chart.GetClose(context.Background(), "AAPL", time.Now())
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("all-null closes must be unavailable, got %v", err)
	}
}
