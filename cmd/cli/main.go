package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"finportal/domain/report"
	"finportal/internal"
	"finportal/internal/config"
	"finportal/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var c *container.Container
	rootCmd := &cobra.Command{
		Use:           "finportal-cli",
		Short:         "Run finance portal reports from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			internal.DefaultLogger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
			c, err = container.New(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c == nil {
				return nil
			}
			return c.Shutdown(cmd.Context())
		},
	}

	services := func() *container.Container { return c }
	rootCmd.AddCommand(
		newReportsCmd(services),
		newWeeksCmd(services),
		newReportCmd(services),
		newExportCmd(services),
		newCacheCmd(services),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newReportsCmd(services func() *container.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List the report catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderCatalog(services().Catalog))
			return nil
		},
	}
}

func newWeeksCmd(services func() *container.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "weeks",
		Short: "List the selectable reporting weeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			weeks, err := services().Reports.Weeks(cmd.Context())
			if err != nil {
				return err
			}
			for _, w := range weeks {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return nil
		},
	}
}

func paramFlags(cmd *cobra.Command, p *report.Params) {
	cmd.Flags().StringVar(&p.Week, "week", "", "reporting week, e.g. 2025-W09 (default: latest)")
	cmd.Flags().StringVar(&p.Entity, "entity", "", "entity code (default: first configured)")
	cmd.Flags().StringVar(&p.First, "first", "", "first comparison version")
	cmd.Flags().StringVar(&p.Second, "second", "", "second comparison version")
	cmd.Flags().StringVar(&p.Sort, "sort", "", "column to sort by, e.g. variance:revenue:2 (default: report order)")
	cmd.Flags().BoolVar(&p.Desc, "desc", false, "sort descending")
}

// resolveParams fills unset selections the way the portal does.
func resolveParams(ctx context.Context, c *container.Container, p report.Params) (report.Params, error) {
	var weeks []string
	if p.Week == "" {
		var err error
		if weeks, err = c.Reports.Weeks(ctx); err != nil {
			return p, err
		}
	}
	return c.Reports.DefaultParams(p, weeks), nil
}

func newReportCmd(services func() *container.Container) *cobra.Command {
	var p report.Params
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Run a report and print its KPIs and comparison table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := services()
			params, err := resolveParams(cmd.Context(), c, p)
			if err != nil {
				return err
			}
			result, err := c.Reports.Run(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(result))
			return nil
		},
	}
	paramFlags(cmd, &p)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newExportCmd(services func() *container.Container) *cobra.Command {
	var p report.Params
	var dir string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a report's comparison table to XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := services()
			params, err := resolveParams(cmd.Context(), c, p)
			if err != nil {
				return err
			}
			data, name, err := c.Reports.Export(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	paramFlags(cmd, &p)
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}

func newCacheCmd(services func() *container.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached report data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services().Reports.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})
	return cmd
}
