package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/metrics"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
)

// MetricsEndpoint handles GET /v1/metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Processing metrics
//	@Description	In-process counters for extractions, cache use and model calls since start
//	@Tags			metrics
//	@Produce		json
//	@Success		200	{object}	metrics.Snapshot
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/metrics [get]
func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := svcctx.MetricsFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show processing metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp metrics.Snapshot
			if err := client.Get(cmd.Context(), "/v1/metrics", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
