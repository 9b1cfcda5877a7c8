package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/export"
	"github.com/jackzampolin/claimdoc/internal/store"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
)

// ExportEndpoint handles GET /v1/extractions/export.
type ExportEndpoint struct{}

func (e *ExportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/extractions/export", e.handler
}

func (e *ExportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Export extractions as a spreadsheet
//	@Description	Streams every stored extraction (optionally filtered by status) as an XLSX workbook
//	@Tags			extractions
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param			status	query	string	false	"Filter by status"
//	@Success		200
//	@Failure		500	{object}	ErrorResponse
//	@Router			/v1/extractions/export [get]
func (e *ExportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.StoreFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	exs, err := collectExtractions(r, s, r.URL.Query().Get("status"))
	if err != nil {
		writeRunError(w, err)
		return
	}

	wb, err := export.Workbook(exs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer wb.Close()

	name := fmt.Sprintf("claims-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := wb.WriteTo(w); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("export write failed", "error", err)
		}
	}
}

// collectExtractions pages through the store until every matching row is read.
func collectExtractions(r *http.Request, s *store.Store, status string) ([]*store.Extraction, error) {
	var all []*store.Extraction
	opts := store.ListOptions{Status: status, Limit: store.MaxListLimit}
	for {
		page, total, err := s.ListExtractions(r.Context(), opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		opts.Offset += len(page)
		if len(page) == 0 || opts.Offset >= total {
			return all, nil
		}
	}
}

func (e *ExportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out, status string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download stored extractions as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/extractions/export"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			n, err := client.Download(cmd.Context(), path, f)
			if err != nil {
				os.Remove(out)
				return err
			}
			fmt.Printf("Wrote %s (%d bytes)\n", out, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "claims.xlsx", "Output file")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}
