package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/config"
	"github.com/jackzampolin/claimdoc/internal/home"
	"github.com/jackzampolin/claimdoc/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "claimdoc",
	Short: "Medical claim form extraction with vision models",
	Long: `claimdoc turns scanned four-page Vietnamese medical insurance claim
forms into validated structured records.

The pipeline includes:
  - PDF rasterization and per-page vision model extraction
  - Merging of page results into one claim record
  - Required field validation and confidence reporting
  - Storage, audit history and spreadsheet export`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.claimdoc/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "claimdoc home directory (default: ~/.claimdoc)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig reads the config file for h.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}

// newLogger builds the process logger. The --log-level flag wins over config.
func newLogger(configured string) *slog.Logger {
	level := logLevel
	if level == "" {
		level = configured
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
