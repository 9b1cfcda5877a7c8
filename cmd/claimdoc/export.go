package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/export"
	"github.com/jackzampolin/claimdoc/internal/store"
)

var (
	exportOut    string
	exportStatus string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored extractions to an XLSX workbook",
	Long: `Export stored extractions from the local database.

The workbook has a Claims sheet with one row per extraction and an Errors
sheet listing validation messages. Without --out the file is written to
the exports directory under the claimdoc home.

Examples:
  claimdoc export
  claimdoc export --status needs_review --out review.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		cfgMgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		settings := cfgMgr.Get()
		logger := newLogger(settings.LogLevel)

		st, err := openStore(ctx, h, settings, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		var all []*store.Extraction
		opts := store.ListOptions{Status: exportStatus, Limit: store.MaxListLimit}
		for {
			page, total, err := st.ListExtractions(ctx, opts)
			if err != nil {
				return err
			}
			all = append(all, page...)
			opts.Offset += len(page)
			if len(page) == 0 || opts.Offset >= total {
				break
			}
		}

		out := exportOut
		if out == "" {
			out = h.ExportPath(time.Now())
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()

		if err := export.WriteXLSX(f, all); err != nil {
			return err
		}
		fmt.Printf("Exported %d extractions to %s\n", len(all), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: {home}/exports/claims-<time>.xlsx)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "Only export extractions with this status")

	rootCmd.AddCommand(exportCmd)
}
