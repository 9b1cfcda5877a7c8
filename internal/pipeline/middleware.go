package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackzampolin/claimdoc/internal/cache"
	"github.com/jackzampolin/claimdoc/internal/llmcall"
	"github.com/jackzampolin/claimdoc/internal/metrics"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/store"
)

// RunFunc processes one document.
type RunFunc func(ctx context.Context, doc Document) (*Result, error)

// Middleware wraps a RunFunc with cross-cutting behavior.
type Middleware func(RunFunc) RunFunc

// Chain wraps run with mws. The first middleware is the outermost.
func Chain(run RunFunc, mws ...Middleware) RunFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			run = mws[i](run)
		}
	}
	return run
}

// ErrorType classifies a run error for metrics and logs.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPageCount):
		return "page_count"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, rasterize.ErrInvalidPDF):
		return "invalid_pdf"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

// WithLogging logs one summary line per run.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, doc Document) (*Result, error) {
			start := time.Now()
			res, err := next(ctx, doc)
			if err != nil {
				logger.Warn("extraction failed",
					"file", doc.Filename,
					"error", err,
					"error_type", ErrorType(err),
					"duration", time.Since(start))
				return nil, err
			}
			logger.Info("extraction complete",
				"file", doc.Filename,
				"total_pages", res.TotalPages,
				"low_confidence", len(res.LowConfidencePages()),
				"validation_errors", res.ValidationErrors.Sections(),
				"skipped", res.MergeStats.Skipped,
				"cached", res.Cached,
				"extraction_id", res.ExtractionID,
				"duration", time.Since(start))
			return res, nil
		}
	}
}

// WithMetrics records run counters on c. Place it outside WithCache so
// cached results count as hits.
func WithMetrics(c *metrics.Collector) Middleware {
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, doc Document) (*Result, error) {
			c.ExtractionStarted()
			start := time.Now()
			res, err := next(ctx, doc)
			if err != nil {
				c.Error(ErrorType(err))
				c.ExtractionFinished(store.ExtractionFailed, time.Since(start), 0)
				return nil, err
			}
			pages := len(res.PageResults)
			if res.Cached {
				c.CacheHit()
				pages = 0
			} else {
				c.CacheMiss()
			}
			c.ExtractionFinished(resultStatus(res), time.Since(start), pages)
			return res, nil
		}
	}
}

// WithUploadCheck rejects documents that fail CheckUpload before any inner
// middleware runs. Place it outside WithCache so a cached result is never
// served for an upload the limits would refuse.
func WithUploadCheck(allowed []string, maxSize int64) Middleware {
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, doc Document) (*Result, error) {
			if err := CheckUpload(doc, allowed, maxSize); err != nil {
				return nil, err
			}
			return next(ctx, doc)
		}
	}
}

// WithCache serves repeated documents from c, keyed by content hash.
// Only successful results are cached.
func WithCache(c cache.Cache, ttl time.Duration, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, doc Document) (*Result, error) {
			key := cache.Key(doc.Data)
			if data, ok := c.Get(ctx, key); ok {
				res, err := decodeResult(data)
				if err == nil {
					res.Cached = true
					return res, nil
				}
				logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
			}

			res, err := next(ctx, doc)
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(res)
			if err != nil {
				logger.Warn("failed to encode result for cache", "error", err)
				return res, nil
			}
			c.Set(ctx, key, data, ttl)
			return res, nil
		}
	}
}

func decodeResult(data []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var res Result
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ExtractionStore is the persistence WithStore needs.
type ExtractionStore interface {
	CreateDocument(ctx context.Context, filename string, size int64, hash string) (*store.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status string) error
	CreateExtraction(ctx context.Context, documentID, status string) (*store.Extraction, error)
	UpdateExtraction(ctx context.Context, ex *store.Extraction) error
	AddAudit(ctx context.Context, extractionID, action string, changes map[string]any) (*store.AuditLog, error)
}

// WithStore persists every run: the document (deduplicated by hash), an
// extraction row that moves from processing to its final status, and an
// audit entry. Storage failures are logged and never fail the run.
func WithStore(s ExtractionStore, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next RunFunc) RunFunc {
		return func(ctx context.Context, doc Document) (*Result, error) {
			ex, docID := beginExtraction(ctx, s, doc, logger)
			if ex != nil {
				ctx = llmcall.WithExtractionID(ctx, ex.ID)
			}

			res, runErr := next(ctx, doc)
			if ex == nil {
				return res, runErr
			}

			// The run may have been cancelled; record the outcome regardless.
			wctx := context.WithoutCancel(ctx)
			finishExtraction(wctx, s, ex, docID, res, runErr, logger)
			if runErr != nil {
				return nil, runErr
			}
			res.ExtractionID = ex.ID
			return res, nil
		}
	}
}

func beginExtraction(ctx context.Context, s ExtractionStore, doc Document, logger *slog.Logger) (*store.Extraction, string) {
	d, err := s.CreateDocument(ctx, doc.Filename, int64(len(doc.Data)), cache.Key(doc.Data))
	if err != nil {
		logger.Warn("failed to record document", "file", doc.Filename, "error", err)
		return nil, ""
	}
	if err := s.UpdateDocumentStatus(ctx, d.ID, store.DocumentProcessing); err != nil {
		logger.Warn("failed to update document status", "document_id", d.ID, "error", err)
	}
	ex, err := s.CreateExtraction(ctx, d.ID, store.ExtractionProcessing)
	if err != nil {
		logger.Warn("failed to create extraction", "document_id", d.ID, "error", err)
		return nil, d.ID
	}
	return ex, d.ID
}

func finishExtraction(ctx context.Context, s ExtractionStore, ex *store.Extraction, docID string, res *Result, runErr error, logger *slog.Logger) {
	docStatus := store.DocumentCompleted
	action := store.ActionExtracted
	changes := map[string]any{}

	if runErr != nil {
		ex.Status = store.ExtractionFailed
		ex.Error = runErr.Error()
		docStatus = store.DocumentFailed
		action = store.ActionFailed
		changes["error"] = runErr.Error()
		changes["error_type"] = ErrorType(runErr)
	} else {
		ex.Status = resultStatus(res)
		ex.Data = res.MergedData
		ex.TotalPages = res.TotalPages
		ex.ProcessingTimeMs = res.ProcessingTimeMs
		ex.ValidationErrors = res.ValidationErrors
		if pages, err := json.Marshal(res.PageResults); err == nil {
			ex.PageResults = pages
		} else {
			logger.Warn("failed to encode page results", "extraction_id", ex.ID, "error", err)
		}
		changes["total_pages"] = res.TotalPages
		changes["validation_error_count"] = res.ValidationErrors.Count()
		changes["low_confidence_pages"] = res.LowConfidencePages()
	}
	changes["status"] = ex.Status

	if err := s.UpdateExtraction(ctx, ex); err != nil {
		logger.Warn("failed to save extraction", "extraction_id", ex.ID, "error", err)
	}
	if err := s.UpdateDocumentStatus(ctx, docID, docStatus); err != nil {
		logger.Warn("failed to update document status", "document_id", docID, "error", err)
	}
	if _, err := s.AddAudit(ctx, ex.ID, action, changes); err != nil {
		logger.Warn("failed to write audit log", "extraction_id", ex.ID, "error", err)
	}
}

func resultStatus(res *Result) string {
	if res.ValidationErrors.Valid() {
		return store.ExtractionCompleted
	}
	return store.ExtractionNeedsReview
}
