package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"finportal/domain/report"
	"finportal/internal/config"
	"finportal/internal/container"
	"finportal/internal/migration"
	"finportal/internal/testkit"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "finportal-dev",
		Short: "Finance portal development tools",
	}
	rootCmd.AddCommand(newSynthCmd(), newSmokeCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSynthCmd() *cobra.Command {
	cfg := testkit.DefaultFactConfig()
	var out, from, to string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic fact extract usable with WAREHOUSE_DRIVER=file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from != "" || to != "" {
				weeks, _, err := migration.WeekRange(from, to)
				if err != nil {
					return err
				}
				cfg.Weeks = weeks
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := testkit.NewFactGenerator(cfg).WriteCSV(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "facts.csv", "output CSV path")
	cmd.Flags().StringVar(&from, "from", "", "first week (with --to)")
	cmd.Flags().StringVar(&to, "to", "", "last week (with --from)")
	cmd.Flags().StringSliceVar(&cfg.Entities, "entities", cfg.Entities, "entity codes")
	cmd.Flags().StringSliceVar(&cfg.Versions, "versions", cfg.Versions, "forecast versions")
	cmd.Flags().IntVar(&cfg.Slots, "slots", cfg.Slots, "recipe slots per week")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	return cmd
}

func newSmokeCmd() *cobra.Command {
	var p report.Params
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run every catalog report against the configured warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := container.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			weeks, err := c.Reports.Weeks(ctx)
			if err != nil {
				return err
			}
			params := c.Reports.DefaultParams(p, weeks)
			failed := 0
			for _, def := range c.Catalog.List() {
				start := time.Now()
				result, err := c.Reports.Run(ctx, def.ID, params)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %-28s %v\n", def.ID, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %-28s %5d facts %4d rows %s\n",
					def.ID, result.FactRows, len(result.Table.Rows), time.Since(start).Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d reports failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Week, "week", "", "reporting week (default: latest)")
	cmd.Flags().StringVar(&p.Entity, "entity", "", "entity code")
	return cmd
}
