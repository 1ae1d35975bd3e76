package cli

import (
	"github.com/spf13/cobra"

	"screener-alerts/internal/app"
	"screener-alerts/internal/market"
)

var purgeMarket string

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove saved records older than the configured retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := market.Parse(purgeMarket)
		if err != nil {
			return err
		}
		return getApp().Purge(cmd.Context(), app.PurgeOptions{Market: m})
	},
}

func init() {
	purgeCmd.Flags().StringVar(&purgeMarket, "market", "US", "Market to purge (US or IN)")
}
