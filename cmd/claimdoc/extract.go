package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/config"
	"github.com/jackzampolin/claimdoc/internal/home"
	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/providers"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/server"
	"github.com/jackzampolin/claimdoc/internal/store"
)

var (
	extractPriority []string
	extractNoDelay  bool
	extractSave     bool
	extractProvider string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Extract a claim form locally without a server",
	Long: `Extract a claim form PDF in this process.

The PDF is rasterized with pdftoppm, each page is sent to the configured
vision model, and the merged, validated record is printed.

Examples:
  claimdoc extract claim.pdf
  claimdoc extract claim.pdf --priority insured_info.name=3
  claimdoc extract claim.pdf --save -o json`,
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
		settings := *cfgMgr.Get()
		logger := newLogger(settings.LogLevel)

		if len(extractPriority) > 0 {
			settings.Pipeline.Priority = extractPriority
		}
		if extractNoDelay {
			settings.Pipeline.PageDelay = 0
		}
		if extractProvider != "" {
			settings.Defaults.LLMProvider = extractProvider
		}

		vision, err := visionFor(&settings, logger)
		if err != nil {
			return err
		}
		renderer := rasterize.NewPdftoppm(rasterize.Config{
			DPI:     settings.Pipeline.DPI,
			Workers: settings.Pipeline.RenderWorkers,
			Logger:  logger,
		})
		if !renderer.Available() {
			return fmt.Errorf("pdftoppm not found on PATH (install poppler-utils)")
		}

		orch, err := server.NewOrchestrator(settings.Pipeline, vision, renderer, logger)
		if err != nil {
			return err
		}

		run := pipeline.Chain(orch.RunFunc(), pipeline.WithLogging(logger))
		if extractSave {
			st, err := openStore(ctx, h, &settings, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			run = pipeline.Chain(run, pipeline.WithStore(st, logger))
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		res, err := run(ctx, pipeline.Document{Filename: filepath.Base(args[0]), Data: data})
		if err != nil {
			return err
		}
		return api.Output(res)
	},
}

func init() {
	extractCmd.Flags().StringArrayVar(&extractPriority, "priority", nil, "Take a field from one page, as path=page (repeatable)")
	extractCmd.Flags().BoolVar(&extractNoDelay, "no-delay", false, "Skip the pause between page requests")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "Store the result in the local database")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "", "LLM provider name (default: defaults.llm_provider)")

	rootCmd.AddCommand(extractCmd)
}

// visionFor resolves the default provider into a vision model.
func visionFor(settings *config.Config, logger *slog.Logger) (*providers.Vision, error) {
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Reload(settings.ToProviderRegistryConfig())

	name := settings.Defaults.LLMProvider
	client, err := registry.GetLLM(name)
	if err != nil {
		return nil, fmt.Errorf("vision model %q not configured (check llm_providers and its API key): %w", name, err)
	}
	v := providers.NewVision(client, "")
	if pc, ok := settings.GetLLMProvider(name); ok {
		v.Model = pc.Model
	}
	return v, nil
}

// openStore opens and migrates the configured database. SQLite without a
// DSN lives in the home data directory.
func openStore(ctx context.Context, h *home.Dir, settings *config.Config, logger *slog.Logger) (*store.Store, error) {
	db := settings.Database
	dsn := config.ResolveEnvVars(db.DSN)
	if dsn == "" && db.Driver != store.DriverPostgres {
		dsn = h.DatabasePath()
	}
	st, err := store.Open(ctx, store.Config{
		Driver:           db.Driver,
		DSN:              dsn,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		ConnMaxLifetime:  db.ConnMaxLifetime,
		ConnMaxIdleTime:  db.ConnMaxIdleTime,
		StatementTimeout: db.StatementTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
