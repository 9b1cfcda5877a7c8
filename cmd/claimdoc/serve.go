package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/server"
)

var (
	serveHost      string
	servePort      string
	serveGRPCPort  string
	serveManagedDB bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the claimdoc server",
	Long: `Start the claimdoc HTTP server.

The server opens the configured database (SQLite by default), builds the
extraction pipeline and serves the HTTP API. With --managed-db it also starts
a local Postgres container and stops it again on shutdown.

The server provides:
  - /health                - Basic server health check
  - /ready                 - Readiness check (includes database status)
  - /v1/extract-multipage  - Extract a claim form PDF
  - /swagger               - API documentation

Examples:
  claimdoc serve                    # Start on the configured port
  claimdoc serve --port 3000        # Start on custom port
  claimdoc serve --host 0.0.0.0     # Bind to all interfaces
  claimdoc serve --grpc-port 9090   # Also serve gRPC health checks`,
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

		logger := newLogger(cfgMgr.Get().LogLevel)
		cfgMgr.SetLogger(logger)
		cfgMgr.WatchConfig()

		cfg := server.Config{
			Host:          serveHost,
			Port:          servePort,
			GRPCPort:      serveGRPCPort,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		}
		if cmd.Flags().Changed("managed-db") {
			cfg.ManagedDB = &serveManagedDB
		}

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&serveGRPCPort, "grpc-port", "", "gRPC health port (default: server.grpc_port)")
	serveCmd.Flags().BoolVar(&serveManagedDB, "managed-db", false, "Run Postgres in a local Docker container")

	rootCmd.AddCommand(serveCmd)
}
