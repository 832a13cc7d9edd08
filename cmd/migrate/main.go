package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"finportal/adapters/excel"
	"finportal/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// Manages the local postgres mirror used with WAREHOUSE_DRIVER=postgres.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var databaseURL string
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create and seed the local postgres mirror of the warehouse tables",
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")

	connect := func(ctx context.Context) (*sqlx.DB, error) {
		if databaseURL == "" {
			return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
		}
		return sqlx.ConnectContext(ctx, "postgres", databaseURL)
	}
	runner := migration.NewRunner()

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Create the mirror schemas, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return runner.Run(cmd.Context(), db)
		},
	}

	var force bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop the mirror schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset drops every mirrored table; pass --force to confirm")
			}
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return runner.Reset(cmd.Context(), db)
		},
	}
	resetCmd.Flags().BoolVar(&force, "force", false, "confirm dropping the schemas")

	var from, to string
	weeksCmd := &cobra.Command{
		Use:   "seed-weeks",
		Short: "Fill the date dimension for a range of weeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := runner.SeedWeeks(cmd.Context(), db, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d weeks\n", n)
			return nil
		},
	}
	weeksCmd.Flags().StringVar(&from, "from", "2025-W01", "first week")
	weeksCmd.Flags().StringVar(&to, "to", "2026-W52", "last week")

	var sheet string
	var truncate bool
	loadCmd := &cobra.Command{
		Use:   "load <schema.table> <file>",
		Short: "Load a CSV or XLSX extract into a mirrored table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := migration.FindTable(args[0])
			if err != nil {
				return err
			}
			data, err := excel.NewDataReader(args[1]).WithSheet(sheet).ReadData()
			if err != nil {
				return err
			}
			rows := make([]map[string]string, len(data.Rows))
			for i, r := range data.Rows {
				rows[i] = r
			}

			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := runner.LoadRows(cmd.Context(), db, table, data.Headers, rows, truncate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", n, table.QualifiedName())
			return nil
		},
	}
	loadCmd.Flags().StringVar(&sheet, "sheet", "Sheet1", "worksheet to read from XLSX files")
	loadCmd.Flags().BoolVar(&truncate, "truncate", false, "empty the table first")

	rootCmd.AddCommand(upCmd, resetCmd, weeksCmd, loadCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
