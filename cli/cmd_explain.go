package cli

import (
	"context"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/honeynil/sqlkit/dynamic"
)

func (app *App) explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <table>",
		Short: "Print a live table's discovered column shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			table := args[0]

			db, err := app.setupDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := dynamic.New(db).Schema(ctx, table)
			if err != nil {
				return err
			}

			out := tablewriter.NewWriter(os.Stdout)
			out.Header([]string{"Column", "Type", "Nullable", "Primary Key"})
			for _, col := range s.Columns {
				if err := out.Append([]string{
					col.Name, col.SQLType, boolYesNo(col.Nullable), boolYesNo(col.PrimaryKey),
				}); err != nil {
					return err
				}
			}
			return out.Render()
		},
	}
}

func boolYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
