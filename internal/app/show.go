package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// Show lists the saved records for a (market, date) with their current
// tracking state.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.Load(ctx, opts.Market, opts.Date)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no saved records for that date")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tDirection\tScore\tSetup\tEntry\tReturn%\tMax Gain%\tMax DD%\tSamples\tStatus\tLosing Steam")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%t\n",
			rec.Alert.Symbol,
			rec.Alert.Direction,
			rec.Alert.Score,
			rec.Alert.Setup,
			rec.Alert.Price.StringFixed(2),
			rec.ReturnPct().StringFixed(2),
			rec.MaxGainPct().StringFixed(2),
			rec.MaxDrawdownPct().StringFixed(2),
			len(rec.Samples),
			rec.Status,
			rec.LosingSteam,
		)
	}
	writer.Flush()
	return nil
}
