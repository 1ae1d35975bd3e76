package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"screener-alerts/internal/app"
	"screener-alerts/internal/market"
)

var (
	trackMarket string
	trackAsOf   string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run one performance-tracking pass over active alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := market.Parse(trackMarket)
		if err != nil {
			return err
		}
		asOf, err := parseDateFlag(trackAsOf, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("invalid --as-of value: %w", err)
		}

		opts := app.TrackOptions{
			Market: m,
			AsOf:   asOf,
		}
		return getApp().Track(cmd.Context(), opts)
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackMarket, "market", "US", "Market to track (US or IN)")
	trackCmd.Flags().StringVar(&trackAsOf, "as-of", "", "Tracking date (YYYY-MM-DD, default today)")
}
