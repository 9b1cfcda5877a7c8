package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Sentinel errors for documents rejected before processing starts.
var (
	ErrPageCount       = errors.New("unexpected page count")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// PageCountError reports a document with fewer pages than the form has.
type PageCountError struct {
	Expected int
	Got      int
}

func (e *PageCountError) Error() string {
	return fmt.Sprintf("Expected %d pages, got %d", e.Expected, e.Got)
}

func (e *PageCountError) Unwrap() error { return ErrPageCount }

// TooLargeError reports an upload above the size limit.
type TooLargeError struct {
	Limit int64
	Size  int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("File too large. Max size: %dMB", e.Limit/(1024*1024))
}

func (e *TooLargeError) Unwrap() error { return ErrTooLarge }

// UnsupportedTypeError reports an upload whose extension is not allowed.
type UnsupportedTypeError struct {
	Filename string
}

func (e *UnsupportedTypeError) Error() string {
	return "Only PDF files are allowed"
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

// CheckUpload applies the extension and size limits to a document.
// Empty allowed accepts any extension; maxSize <= 0 disables the size check.
func CheckUpload(doc Document, allowed []string, maxSize int64) error {
	if len(allowed) > 0 {
		ext := strings.ToLower(filepath.Ext(doc.Filename))
		if !slices.ContainsFunc(allowed, func(a string) bool { return strings.ToLower(a) == ext }) {
			return &UnsupportedTypeError{Filename: doc.Filename}
		}
	}
	if maxSize > 0 && int64(len(doc.Data)) > maxSize {
		return &TooLargeError{Limit: maxSize, Size: int64(len(doc.Data))}
	}
	return nil
}
