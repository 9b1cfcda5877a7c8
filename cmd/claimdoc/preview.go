package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/rasterize"
)

var (
	previewWidth  int
	previewOutDir string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file.pdf>",
	Short: "Render page thumbnails locally",
	Long: `Render every page of a PDF and print thumbnail sizes.

With --out-dir the thumbnails are written as page-N.png files.`,
	Args: cobra.ExactArgs(1),
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

		width := previewWidth
		if width == 0 {
			width = settings.Pipeline.PreviewWidth
		}

		renderer := rasterize.NewPdftoppm(rasterize.Config{
			DPI:     settings.Pipeline.DPI,
			Workers: settings.Pipeline.RenderWorkers,
			Logger:  logger,
		})
		if !renderer.Available() {
			return fmt.Errorf("pdftoppm not found on PATH (install poppler-utils)")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		previews, err := rasterize.Preview(ctx, renderer, data, width)
		if err != nil {
			return err
		}

		if previewOutDir != "" {
			if err := os.MkdirAll(previewOutDir, 0o755); err != nil {
				return err
			}
		}
		for _, p := range previews {
			fmt.Printf("Page %d: %dx%d\n", p.Page, p.Width, p.Height)
			if previewOutDir == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(p.Image, "data:image/png;base64,"))
			if err != nil {
				return fmt.Errorf("page %d: %w", p.Page, err)
			}
			path := filepath.Join(previewOutDir, fmt.Sprintf("page-%d.png", p.Page))
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	previewCmd.Flags().IntVar(&previewWidth, "width", 0, "Maximum thumbnail width (default: pipeline.preview_width)")
	previewCmd.Flags().StringVar(&previewOutDir, "out-dir", "", "Write thumbnails to this directory")

	rootCmd.AddCommand(previewCmd)
}
