package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"screener-alerts/internal/app"
	"screener-alerts/internal/market"
)

var (
	scanMarket string
	scanDate   string
	scanSave   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Score the day's snapshots and print ranked alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := market.Parse(scanMarket)
		if err != nil {
			return err
		}
		date, err := parseDateFlag(scanDate, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("invalid --date value: %w", err)
		}

		opts := app.ScanOptions{
			Market: m,
			Date:   date,
			Save:   scanSave,
		}
		return getApp().Scan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanMarket, "market", "US", "Market to scan (US or IN)")
	scanCmd.Flags().StringVar(&scanDate, "date", "", "Evaluation date (YYYY-MM-DD, default today)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Run the auto-save scheduler tick after scoring")
}

// parseDateFlag parses a YYYY-MM-DD flag, normalised to UTC midnight.
// An empty value falls back to the fallback instant's date.
func parseDateFlag(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		y, m, d := fallback.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", value)
}
