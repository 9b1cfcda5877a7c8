package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/pgcontainer"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
	"github.com/jackzampolin/claimdoc/version"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "OCR Medical Document API"

// InfoResponse describes the service.
type InfoResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

// RootEndpoint handles GET /.
type RootEndpoint struct{}

func (e *RootEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{$}", e.handler
}

func (e *RootEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Service info
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	InfoResponse
//	@Router		/ [get]
func (e *RootEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Message: ServiceName,
		Version: version.GitRelease,
		Docs:    "/swagger",
	})
}

func (e *RootEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show service info",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp InfoResponse
			if err := client.Get(cmd.Context(), "/", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status          string `json:"status"`
	ModelConfigured bool   `json:"model_configured"`
	Database        string `json:"database,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "healthy",
		ModelConfigured: svcctx.ModelConfiguredFrom(r.Context()),
	})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			fmt.Printf("Model:  %v\n", resp.ModelConfigured)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Readiness check including the database
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:          "healthy",
		ModelConfigured: svcctx.ModelConfiguredFrom(r.Context()),
		Database:        "ok",
	}

	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		resp.Status = "degraded"
		resp.Database = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if err := s.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the database)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:   %s\n", resp.Status)
			fmt.Printf("Database: %s\n", resp.Database)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string         `json:"server"`
	Version   string         `json:"version"`
	Providers []string       `json:"providers"`
	Database  DatabaseStatus `json:"database"`
	Pipeline  PipelineStatus `json:"pipeline"`
}

// DatabaseStatus shows the store driver and health.
type DatabaseStatus struct {
	Driver    string `json:"driver"`
	Health    string `json:"health"`
	Container string `json:"container,omitempty"`
}

// PipelineStatus shows the effective extraction settings.
type PipelineStatus struct {
	MaxPages         int    `json:"max_pages"`
	MinPages         int    `json:"min_pages"`
	PageDelay        string `json:"page_delay"`
	ProcessingMethod string `json:"processing_method"`
	CacheEnabled     bool   `json:"cache_enabled"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// DBManager is set by the server when it manages a Postgres container.
	DBManager *pgcontainer.Manager
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Detailed server status
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	StatusResponse
//	@Router		/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server:  "running",
		Version: version.GitRelease,
	}

	if registry := svcctx.RegistryFrom(ctx); registry != nil {
		resp.Providers = registry.ListLLM()
	}

	if s := svcctx.StoreFrom(ctx); s != nil {
		resp.Database.Driver = s.Dialect()
		resp.Database.Health = "healthy"
		if err := s.Ping(ctx); err != nil {
			resp.Database.Health = "unhealthy"
		}
	} else {
		resp.Database.Health = "not_initialized"
	}

	if e.DBManager != nil {
		status, err := e.DBManager.Status(ctx)
		if err != nil {
			resp.Database.Container = "error"
		} else {
			resp.Database.Container = string(status)
		}
	}

	if cfg := svcctx.ConfigFrom(ctx); cfg != nil {
		resp.Pipeline = PipelineStatus{
			MaxPages:         cfg.Pipeline.MaxPages,
			MinPages:         cfg.Pipeline.MinPages,
			PageDelay:        cfg.Pipeline.PageDelay.String(),
			ProcessingMethod: cfg.Pipeline.ProcessingMethod,
			CacheEnabled:     cfg.Cache.Enabled,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
