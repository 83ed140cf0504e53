package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (app *App) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pool occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			db, err := app.setupDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			s := db.Stats()
			table := tablewriter.NewWriter(os.Stdout)
			table.Header([]string{"Total", "Active", "Idle", "In Transaction"})
			if err := table.Append([]string{
				strconv.Itoa(s.Total),
				strconv.Itoa(s.Active),
				strconv.Itoa(s.Idle),
				strconv.Itoa(s.InTransaction),
			}); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Printf("driver: %s\n", db.DriverKind())
			return nil
		},
	}
}
