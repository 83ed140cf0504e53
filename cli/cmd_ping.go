package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (app *App) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Probe connectivity against the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			db, err := app.setupDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			start := time.Now()
			rs, err := db.RawQuery(ctx, "SELECT 1")
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			rs.Close()
			fmt.Printf("✓ %s reachable (%s)\n", db.DriverKind(), time.Since(start))
			return nil
		},
	}
}
