package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/llmcall"
	"github.com/jackzampolin/claimdoc/internal/store"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
)

// ListExtractionsResponse is one page of extractions.
type ListExtractionsResponse struct {
	Extractions []*store.Extraction `json:"extractions"`
	Total       int                 `json:"total"`
	Offset      int                 `json:"offset"`
	Limit       int                 `json:"limit"`
}

// ListExtractionsEndpoint handles GET /v1/extractions.
type ListExtractionsEndpoint struct{}

func (e *ListExtractionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/extractions", e.handler
}

func (e *ListExtractionsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	List extractions
//	@Tags		extractions
//	@Produce	json
//	@Param		status	query		string	false	"Filter by status"
//	@Param		offset	query		int		false	"Rows to skip"
//	@Param		limit	query		int		false	"Page size (max 500)"
//	@Success	200		{object}	ListExtractionsResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	500		{object}	ErrorResponse
//	@Router		/v1/extractions [get]
func (e *ListExtractionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	opts, err := parseListOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, total, err := s.ListExtractions(r.Context(), opts)
	if err != nil {
		writeRunError(w, err)
		return
	}
	if list == nil {
		list = []*store.Extraction{}
	}
	writeJSON(w, http.StatusOK, ListExtractionsResponse{
		Extractions: list,
		Total:       total,
		Offset:      opts.Offset,
		Limit:       opts.Limit,
	})
}

func parseListOptions(q url.Values) (store.ListOptions, error) {
	opts := store.ListOptions{Status: q.Get("status"), Limit: store.DefaultListLimit}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid offset %q", v)
		}
		opts.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = min(n, store.MaxListLimit)
	}
	return opts, nil
}

func (e *ListExtractionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status string
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extractions",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			q.Set("offset", strconv.Itoa(offset))
			q.Set("limit", strconv.Itoa(limit))

			client := api.NewClient(getServerURL())
			var resp ListExtractionsResponse
			if err := client.Get(cmd.Context(), "/v1/extractions?"+q.Encode(), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "Page size")
	return cmd
}

// GetExtractionEndpoint handles GET /v1/extractions/{id}.
type GetExtractionEndpoint struct{}

func (e *GetExtractionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/extractions/{id}", e.handler
}

func (e *GetExtractionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Get an extraction
//	@Tags		extractions
//	@Produce	json
//	@Param		id	path		string	true	"Extraction ID"
//	@Success	200	{object}	store.Extraction
//	@Failure	404	{object}	ErrorResponse
//	@Router		/v1/extractions/{id} [get]
func (e *GetExtractionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	ex, err := s.GetExtraction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (e *GetExtractionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp store.Extraction
			if err := client.Get(cmd.Context(), "/v1/extractions/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteExtractionEndpoint handles DELETE /v1/extractions/{id}.
type DeleteExtractionEndpoint struct{}

func (e *DeleteExtractionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/v1/extractions/{id}", e.handler
}

func (e *DeleteExtractionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Delete an extraction and its audit log
//	@Tags		extractions
//	@Param		id	path	string	true	"Extraction ID"
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/v1/extractions/{id} [delete]
func (e *DeleteExtractionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	id := r.PathValue("id")
	if err := s.DeleteExtraction(r.Context(), id); err != nil {
		writeRunError(w, err)
		return
	}
	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("extraction deleted", "extraction_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteExtractionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/v1/extractions/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

// AuditResponse lists audit entries oldest first.
type AuditResponse struct {
	Entries []*store.AuditLog `json:"entries"`
}

// AuditEndpoint handles GET /v1/extractions/{id}/audit.
type AuditEndpoint struct{}

func (e *AuditEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/extractions/{id}/audit", e.handler
}

func (e *AuditEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Audit log of an extraction
//	@Tags		extractions
//	@Produce	json
//	@Param		id	path		string	true	"Extraction ID"
//	@Success	200	{object}	AuditResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/v1/extractions/{id}/audit [get]
func (e *AuditEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	id := r.PathValue("id")
	if _, err := s.GetExtraction(r.Context(), id); err != nil {
		writeRunError(w, err)
		return
	}
	entries, err := s.ListAudit(r.Context(), id)
	if err != nil {
		writeRunError(w, err)
		return
	}
	if entries == nil {
		entries = []*store.AuditLog{}
	}
	writeJSON(w, http.StatusOK, AuditResponse{Entries: entries})
}

func (e *AuditEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <id>",
		Short: "Show the audit log of an extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp AuditResponse
			if err := client.Get(cmd.Context(), "/v1/extractions/"+url.PathEscape(args[0])+"/audit", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// LLMCallsResponse lists the model calls made for an extraction.
type LLMCallsResponse struct {
	Calls []*llmcall.Call `json:"calls"`
}

// LLMCallsEndpoint handles GET /v1/extractions/{id}/llm-calls.
type LLMCallsEndpoint struct{}

func (e *LLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/extractions/{id}/llm-calls", e.handler
}

func (e *LLMCallsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Model calls made for an extraction
//	@Tags		extractions
//	@Produce	json
//	@Param		id	path		string	true	"Extraction ID"
//	@Success	200	{object}	LLMCallsResponse
//	@Router		/v1/extractions/{id}/llm-calls [get]
func (e *LLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	calls, err := s.ListLLMCalls(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	if calls == nil {
		calls = []*llmcall.Call{}
	}
	writeJSON(w, http.StatusOK, LLMCallsResponse{Calls: calls})
}

func (e *LLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-calls <id>",
		Short: "List the model calls made for an extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LLMCallsResponse
			if err := client.Get(cmd.Context(), "/v1/extractions/"+url.PathEscape(args[0])+"/llm-calls", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
