package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"screener-alerts/internal/history"
)

// maxChartPoints bounds the PNG series so dense ranges stay readable.
const maxChartPoints = 500

// Export writes saved history as CSV and/or a PNG performance chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.LoadRange(ctx, opts.Market, opts.From, opts.To)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no records found for export window")
		return nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Alert.Date.Before(records[j].Alert.Date)
	})

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("records", len(records)).Msg("csv written")
	}

	if opts.PNGPath != "" {
		if err := writeReturnsPNG(opts.PNGPath, downsampleRecords(records, maxChartPoints)); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("chart written")
	}

	return nil
}

func downsampleRecords(records []history.Record, max int) []history.Record {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]history.Record, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []history.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"market", "date", "symbol", "direction", "score", "setup", "entry_price", "return_pct", "max_gain_pct", "max_drawdown_pct", "status", "losing_steam"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Alert.Market.String(),
			rec.Alert.Date.Format("2006-01-02"),
			rec.Alert.Symbol,
			string(rec.Alert.Direction),
			strconv.Itoa(rec.Alert.Score),
			string(rec.Alert.Setup),
			rec.Alert.Price.StringFixed(2),
			rec.ReturnPct().StringFixed(2),
			rec.MaxGainPct().StringFixed(2),
			rec.MaxDrawdownPct().StringFixed(2),
			string(rec.Status),
			strconv.FormatBool(rec.LosingSteam),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeReturnsPNG(path string, records []history.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if len(records) < 2 {
		return errors.New("need at least two records to render a chart")
	}

	x := make([]time.Time, len(records))
	returns := make([]float64, len(records))
	scores := make([]float64, len(records))
	for i, rec := range records {
		x[i] = rec.Alert.Date
		returns[i] = rec.ReturnPct().InexactFloat64()
		scores[i] = float64(rec.Alert.Score)
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Return (%)",
			ValueFormatter: pctFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Score",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Return %",
				XValues: x,
				YValues: returns,
			},
			chart.TimeSeries{
				Name:    "Score",
				XValues: x,
				YValues: scores,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
