package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/service"
	"github.com/noah-isme/kumon-analytics/pkg/storage"
)

type exportOptions struct {
	format  string
	subject string
	month   string
	out     string
}

func newExportCmd(app *cli) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write roster or monthly report documents",
	}
	cmd.PersistentFlags().StringVar(&opts.format, "format", service.FormatCSV, "Output format: csv or pdf")
	cmd.PersistentFlags().StringVar(&opts.subject, "subject", "", "Restrict to one subject")
	cmd.PersistentFlags().StringVar(&opts.out, "out", "./exports", "Output directory")

	roster := &cobra.Command{
		Use:   "roster",
		Short: "Export the active roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := service.NewExportService(app.store, app.cfg.Sheets, app.cfg.Pipeline, app.logger)
			file, err := svc.Roster(cmd.Context(), opts.subject, opts.format)
			if err != nil {
				return err
			}
			return save(cmd, opts.out, file)
		},
	}

	report := &cobra.Command{
		Use:   "report",
		Short: "Export the facts of one month",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := app.cfg.Pipeline.Location()
			month := time.Now().In(loc)
			if opts.month != "" {
				parsed, err := time.ParseInLocation("2006-01", opts.month, loc)
				if err != nil {
					return fmt.Errorf("--month must be formatted YYYY-MM: %w", err)
				}
				month = parsed
			}
			svc := service.NewExportService(app.store, app.cfg.Sheets, app.cfg.Pipeline, app.logger)
			file, err := svc.MonthlyReport(cmd.Context(), models.ReportFilter{Month: month, Subject: opts.subject}, opts.format)
			if err != nil {
				return err
			}
			return save(cmd, opts.out, file)
		},
	}
	report.Flags().StringVar(&opts.month, "month", "", "Month to export as YYYY-MM (default current month)")

	cmd.AddCommand(roster, report)
	return cmd
}

func save(cmd *cobra.Command, dir string, file *service.ExportFile) error {
	files, err := storage.NewLocalStorage(dir)
	if err != nil {
		return err
	}
	path, err := files.Save(file.Filename, file.Data)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
