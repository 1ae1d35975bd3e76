package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"screener-alerts/internal/analytics"
	"screener-alerts/internal/tracker"
)

// Report aggregates saved history into winner analytics buckets, or a
// weekly performance summary when requested.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Weekly {
		summary, err := a.newTracker(store).Summarize(ctx, opts.Market, time.Now().UTC(), 1)
		if err != nil {
			return err
		}
		printWeeklySummary(summary)
		return nil
	}

	groupBy, err := parseGroupBy(opts.GroupBy)
	if err != nil {
		return err
	}

	records, err := store.LoadRange(ctx, opts.Market, opts.From, opts.To)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no records in range")
		return nil
	}

	buckets := analytics.Aggregate(records, groupBy)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "%s\tCount\tWins\tWin Rate%%\tAvg Return%%\tAvg Drawdown%%\n", groupBy)
	for _, b := range buckets {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%.1f\t%.2f\t%.2f\n",
			b.Key, b.Count, b.Wins, b.WinRate, b.AvgReturn, b.AvgDrawdown,
		)
	}
	writer.Flush()
	return nil
}

func parseGroupBy(value string) (analytics.GroupBy, error) {
	switch analytics.GroupBy(value) {
	case analytics.ByScore, analytics.ByPattern, analytics.BySetup, analytics.ByDirection:
		return analytics.GroupBy(value), nil
	default:
		return "", fmt.Errorf("--group-by must be one of score, pattern, setup, direction")
	}
}

func printWeeklySummary(summary tracker.WeeklySummary) {
	fmt.Fprintf(os.Stdout, "Weekly summary for %s (%s to %s)\n",
		summary.Market,
		summary.PeriodStart.Format("2006-01-02"),
		summary.PeriodEnd.Format("2006-01-02"),
	)
	fmt.Fprintf(os.Stdout, "alerts: %d  winners: %d  losers: %d  win rate: %.1f%%  avg return: %.2f%%  losing steam: %d\n",
		summary.TotalAlerts, summary.Winners, summary.Losers, summary.WinRate, summary.AvgReturn, summary.LosingSteam)

	if len(summary.ByDirection) == 0 {
		return
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Direction\tCount\tAvg Return%\tWin Rate%")
	for direction, s := range summary.ByDirection {
		fmt.Fprintf(writer, "%s\t%d\t%.2f\t%.1f\n", direction, s.Count, s.AvgReturn, s.WinRate)
	}
	writer.Flush()
}
