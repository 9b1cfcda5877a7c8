package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
)

// ExtractEndpoint handles POST /v1/extract-multipage.
type ExtractEndpoint struct {
	// MaxFileSize bounds the request body; zero leaves the check to the pipeline.
	MaxFileSize int64
}

var _ api.Endpoint = (*ExtractEndpoint)(nil)

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/extract-multipage", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Extract a claim form
//	@Description	Reads the four pages of a medical claim PDF and returns the merged, validated record
//	@Tags			extraction
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Claim form PDF"
//	@Success		200		{object}	pipeline.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/extract-multipage [post]
func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	run := svcctx.PipelineFrom(r.Context())
	if run == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	doc, err := readUpload(w, r, e.MaxFileSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := run(r.Context(), doc)
	if err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("extract request failed", "file", doc.Filename, "error", err)
		}
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Upload a claim PDF for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			client := api.NewClient(getServerURL())
			var resp pipeline.Result
			if err := client.Upload(cmd.Context(), "/v1/extract-multipage", UploadField, filepath.Base(args[0]), data, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
