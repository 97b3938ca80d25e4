package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/repository"
	"github.com/noah-isme/kumon-analytics/internal/service"
	"github.com/noah-isme/kumon-analytics/pkg/config"
)

type normalizeOptions struct {
	rawFile   string
	variant   string
	strategy  string
	reuseKeys bool
}

func newNormalizeCmd(app *cli) *cobra.Command {
	var opts normalizeOptions

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Rebuild the star schema from the raw log",
		Long: "Reads the raw table (optionally importing it from a CSV file first), " +
			"deduplicates it and overwrites the students, enrollments and facts tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline := app.cfg.Pipeline
			if cmd.Flags().Changed("variant") {
				pipeline.SchemaVariant = strings.ToLower(opts.variant)
			}
			if cmd.Flags().Changed("strategy") {
				pipeline.StatusStrategy = strings.ToLower(opts.strategy)
			}
			if cmd.Flags().Changed("reuse-keys") {
				pipeline.ReuseKeys = opts.reuseKeys
			}
			cfg := *app.cfg
			cfg.Pipeline = pipeline
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if opts.rawFile != "" {
				if err := importRaw(cmd, app, cfg.Sheets, opts.rawFile); err != nil {
					return err
				}
			}

			svc := service.NewPipelineService(app.store, cfg.Sheets, cfg.Pipeline, service.UUIDAssigner{}, nil, app.logger)
			summary, err := svc.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "raw rows: %d\nstudents: %d\nenrollments: %d\nfacts: %d\n",
				summary.RawRows, summary.Students, summary.Enrollments, summary.Facts)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.rawFile, "raw-file", "", "CSV file to import into the raw table before normalizing")
	cmd.Flags().StringVar(&opts.variant, "variant", "", "Schema variant: folded or relation")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Roster status strategy: status_code or latest_report")
	cmd.Flags().BoolVar(&opts.reuseKeys, "reuse-keys", true, "Keep student ids issued by earlier runs")
	return cmd
}

// importRaw overwrites the raw table with the contents of a CSV file.
func importRaw(cmd *cobra.Command, app *cli, sheets config.SheetsConfig, path string) error {
	src, err := repository.NewCSVDirRepository(filepath.Dir(path))
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	table, err := src.ReadTable(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := app.store.ClearAndWrite(cmd.Context(), sheets.Raw, table); err != nil {
		return err
	}
	app.logger.Info("raw log imported", zap.String("file", path), zap.Int("rows", table.Len()))
	return nil
}
