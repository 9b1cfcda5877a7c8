package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/store"
)

// UploadField is the multipart field carrying the PDF.
const UploadField = "file"

// maxMemory bounds the in-memory part of a parsed multipart form.
const maxMemory = 32 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeRunError maps pipeline and store errors to a status code.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrPageCount),
		errors.Is(err, pipeline.ErrTooLarge),
		errors.Is(err, pipeline.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rasterize.ErrInvalidPDF):
		writeError(w, http.StatusBadRequest, "Invalid PDF file")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// readUpload reads the uploaded PDF. A body over maxSize fails with a
// TooLargeError; maxSize <= 0 disables the limit.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (pipeline.Document, error) {
	if maxSize > 0 {
		// Leave room for the multipart envelope so the size check below
		// reports the file, not the request.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+maxMemory)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return pipeline.Document{}, &pipeline.TooLargeError{Limit: maxSize, Size: tooBig.Limit}
		}
		return pipeline.Document{}, fmt.Errorf("failed to parse form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("missing %q upload: %w", UploadField, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("failed to read upload: %w", err)
	}
	return pipeline.Document{Filename: header.Filename, Data: data}, nil
}
