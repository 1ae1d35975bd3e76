package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"screener-alerts/internal/app"
	"screener-alerts/internal/market"
)

var (
	showMarket string
	showDate   string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List the saved records for one trading day",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := market.Parse(showMarket)
		if err != nil {
			return err
		}
		date, err := parseDateFlag(showDate, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("invalid --date value: %w", err)
		}

		opts := app.ShowOptions{
			Market: m,
			Date:   date,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showMarket, "market", "US", "Market to show (US or IN)")
	showCmd.Flags().StringVar(&showDate, "date", "", "Trading date (YYYY-MM-DD, default today)")
}
