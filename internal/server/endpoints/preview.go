package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
)

// PreviewResponse lists page thumbnails.
type PreviewResponse struct {
	TotalPages int                     `json:"total_pages"`
	Previews   []rasterize.PagePreview `json:"previews"`
}

// PreviewEndpoint handles POST /v1/preview-pages.
type PreviewEndpoint struct {
	// MaxWidth caps thumbnail width. Zero keeps the rendered size.
	MaxWidth          int
	MaxFileSize       int64
	AllowedExtensions []string
}

func (e *PreviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/preview-pages", e.handler
}

func (e *PreviewEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Preview PDF pages
//	@Description	Renders every page and returns base64 PNG thumbnails
//	@Tags			extraction
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"PDF to preview"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/v1/preview-pages [post]
func (e *PreviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	renderer := svcctx.RendererFrom(r.Context())
	if renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "renderer not initialized")
		return
	}

	doc, err := readUpload(w, r, e.MaxFileSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := pipeline.CheckUpload(doc, e.AllowedExtensions, e.MaxFileSize); err != nil {
		writeRunError(w, err)
		return
	}

	previews, err := rasterize.Preview(r.Context(), renderer, doc.Data, e.MaxWidth)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{TotalPages: len(previews), Previews: previews})
}

func (e *PreviewEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file.pdf>",
		Short: "Upload a PDF and list its page thumbnails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			client := api.NewClient(getServerURL())
			var resp PreviewResponse
			if err := client.Upload(cmd.Context(), "/v1/preview-pages", UploadField, filepath.Base(args[0]), data, &resp); err != nil {
				return err
			}
			// Thumbnails are large; print only their geometry.
			summary := make([]map[string]int, len(resp.Previews))
			for i, p := range resp.Previews {
				summary[i] = map[string]int{"page": p.Page, "width": p.Width, "height": p.Height}
			}
			return api.Output(map[string]any{"total_pages": resp.TotalPages, "previews": summary})
		},
	}
}
