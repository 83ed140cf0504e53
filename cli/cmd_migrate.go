package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/honeynil/sqlkit/schema"
)

func (app *App) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or drop the registered table schemas",
	}
	cmd.AddCommand(app.migrateUpCmd(), app.migrateDownCmd(), app.migrateRefreshCmd())
	return cmd
}

func (app *App) migrator(ctx context.Context) (*schema.Migrator, func() error, error) {
	db, err := app.setupDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	return schema.NewMigrator(db, app.provider()...), db.Close, nil
}

func (app *App) migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create every registered table (CREATE TABLE IF NOT EXISTS)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			mig, closeDB, err := app.migrator(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := mig.CreateAll(ctx); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Println("✓ All registered tables created")
			return nil
		},
	}
}

func (app *App) migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Drop every registered table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			// checkConfirmation (confirmation.go) is kept verbatim from
			// the teacher: the interactive confirm/confirm-exact gate is
			// generic over the operation description and needs no
			// sqlkit-specific adaptation.
			if err := app.checkConfirmation("drop every registered table"); err != nil {
				return err
			}

			mig, closeDB, err := app.migrator(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := mig.DropAll(ctx); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			fmt.Println("✓ All registered tables dropped")
			return nil
		},
	}
}

func (app *App) migrateRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Drop and recreate every registered table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := app.checkConfirmation("drop and recreate every registered table"); err != nil {
				return err
			}

			mig, closeDB, err := app.migrator(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := mig.RefreshAll(ctx); err != nil {
				return fmt.Errorf("migrate refresh: %w", err)
			}
			fmt.Println("✓ All registered tables refreshed")
			return nil
		},
	}
}
