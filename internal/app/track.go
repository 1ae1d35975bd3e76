package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// Track runs one performance-tracking pass and prints the per-record
// outcomes, including the symbols skipped for missing prices.
func (a *App) Track(ctx context.Context, opts TrackOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	results, err := a.newTracker(store).UpdateTracking(ctx, opts.Market, opts.AsOf)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "no active records in tracking window")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tDate\tOffset\tClose\tReturn%\tClosed\tLosing Steam\tError")
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%t\t%t\t%s\n",
			r.Key.Symbol,
			r.Key.Date.Format("2006-01-02"),
			r.Offset,
			r.Price.StringFixed(2),
			r.ReturnPct.StringFixed(2),
			r.Closed,
			r.LosingSteam,
			errMsg,
		)
	}
	writer.Flush()
	return nil
}
