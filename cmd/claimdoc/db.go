package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/home"
	"github.com/jackzampolin/claimdoc/internal/pgcontainer"
	"github.com/jackzampolin/claimdoc/internal/server"
	"github.com/jackzampolin/claimdoc/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local Postgres container",
	Long: `Manage the optional Postgres container used with "serve --managed-db".

Data is persisted under ~/.claimdoc/data/postgres/. The password comes from
database.managed.password, which defaults to ${CLAIMDOC_DB_PASSWORD}.

Examples:
  claimdoc db start   # Start the Postgres container
  claimdoc db stop    # Stop the container (data preserved)
  claimdoc db status  # Check container status
  claimdoc db logs    # View container logs`,
}

var dbStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Postgres container",
	Long: `Start the Postgres container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDBManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting Postgres...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start Postgres: %w", err)
		}

		fmt.Printf("Postgres is running (%s)\n", mgr.ContainerName())
		return nil
	},
}

var dbStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Postgres container",
	Long: `Stop the Postgres container.

This stops the container but preserves data. Use 'claimdoc db start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDBManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping Postgres...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop Postgres: %w", err)
		}

		fmt.Println("Postgres stopped")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Postgres container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDBManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case pgcontainer.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("Container: %s\n", mgr.ContainerName())

			st, err := store.Open(ctx, store.Config{
				Driver:          store.DriverPostgres,
				DSN:             mgr.DSN(),
				ConnectAttempts: 1,
			})
			if err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				st.Close()
				fmt.Println("Health: healthy")
			}
		case pgcontainer.StatusStopped:
			fmt.Printf("Status: %s (use 'claimdoc db start' to start)\n", status)
		case pgcontainer.StatusNotFound:
			fmt.Printf("Status: %s (use 'claimdoc db start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var logsTail string

var dbLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Postgres container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDBManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var dbRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Postgres container",
	Long: `Remove the Postgres container.

This stops and removes the container. Data in ~/.claimdoc/data/postgres/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDBManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing Postgres container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Postgres container removed (data preserved)")
		return nil
	},
}

var dbWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for Postgres to be ready",
	Long: `Wait for Postgres to be ready to accept connections.

This is useful in scripts to ensure the database is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getDBManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for Postgres (timeout: %s)...\n", timeout)

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := mgr.WaitReady(ctx); err != nil {
			return fmt.Errorf("Postgres not ready: %w", err)
		}

		fmt.Println("Postgres is ready")
		return nil
	},
}

func init() {
	// Add subcommands
	dbCmd.AddCommand(dbStartCmd)
	dbCmd.AddCommand(dbStopCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbLogsCmd)
	dbCmd.AddCommand(dbRemoveCmd)
	dbCmd.AddCommand(dbWaitCmd)

	// Logs flags
	dbLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")

	// Wait flags
	dbWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for Postgres")

	// Add to root
	rootCmd.AddCommand(dbCmd)
}

// getDBManager creates a container manager from the managed database config.
func getDBManager() (*pgcontainer.Manager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cfgMgr, err := loadConfig(h)
	if err != nil {
		return nil, err
	}
	if err := ensureDataDir(h); err != nil {
		return nil, err
	}
	settings := cfgMgr.Get()
	return server.NewDBManager(settings.Database.Managed, h, newLogger(settings.LogLevel))
}

func ensureDataDir(h *home.Dir) error {
	if err := os.MkdirAll(h.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
