package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"screener-alerts/internal/app"
	"screener-alerts/internal/market"
)

var (
	reportMarket  string
	reportFrom    string
	reportTo      string
	reportGroupBy string
	reportWeekly  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate saved history into winner analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := market.Parse(reportMarket)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		to, err := parseDateFlag(reportTo, now)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}
		from, err := parseDateFlag(reportFrom, now.AddDate(0, 0, -30))
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		if from.After(to) {
			return fmt.Errorf("--from must not be after --to")
		}

		opts := app.ReportOptions{
			Market:  m,
			From:    from,
			To:      to,
			GroupBy: reportGroupBy,
			Weekly:  reportWeekly,
		}
		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportMarket, "market", "US", "Market to report on (US or IN)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Range start (YYYY-MM-DD, default 30 days ago)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Range end (YYYY-MM-DD, default today)")
	reportCmd.Flags().StringVar(&reportGroupBy, "group-by", "score", "Bucket key: score, pattern, setup, or direction")
	reportCmd.Flags().BoolVar(&reportWeekly, "weekly", false, "Print the trailing-week performance summary instead")
}
