package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"screener-alerts/internal/app"
	"screener-alerts/internal/market"
)

var (
	exportMarket string
	exportFrom   string
	exportTo     string
	exportCSV    string
	exportPNG    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved history as CSV and/or a PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := market.Parse(exportMarket)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		to, err := parseDateFlag(exportTo, now)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}
		from, err := parseDateFlag(exportFrom, now.AddDate(0, 0, -90))
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		if from.After(to) {
			return fmt.Errorf("--from must not be after --to")
		}

		opts := app.ExportOptions{
			Market:  m,
			From:    from,
			To:      to,
			CSVPath: exportCSV,
			PNGPath: exportPNG,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportMarket, "market", "US", "Market to export (US or IN)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Range start (YYYY-MM-DD, default 90 days ago)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Range end (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Write records to this CSV path")
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Render the performance chart to this PNG path")
}
