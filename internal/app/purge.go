package app

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Purge removes saved records older than the configured retention.
func (a *App) Purge(ctx context.Context, opts PurgeOptions) error {
	days := a.Config.Retention.Days
	if days <= 0 {
		return fmt.Errorf("retention.days must be positive, got %d", days)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	removed, err := store.ClearOld(ctx, opts.Market, cutoff)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("market", opts.Market.String()).
		Time("cutoff", cutoff).
		Int("removed", removed).
		Msg("retention purge completed")
	fmt.Fprintf(os.Stdout, "removed %d records older than %s\n", removed, cutoff.Format("2006-01-02"))
	return nil
}
