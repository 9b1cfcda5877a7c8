// Package pipeline runs one claim document through rendering, per-page
// extraction, cleaning, merging and validation.
//
// Pages are extracted strictly in order, one model call at a time. A failed
// page is reported in the result with low confidence and never aborts the
// run; only a document rejected before processing (wrong type, too large,
// too few pages) returns an error.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/claimdoc/internal/claim"
	"github.com/jackzampolin/claimdoc/internal/extract"
	"github.com/jackzampolin/claimdoc/internal/merge"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/validate"
)

// Confidence labels.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// DefaultProcessingMethod describes how pages are read.
const DefaultProcessingMethod = "pdftoppm + Gemini Vision API"

// Document is one uploaded claim PDF.
type Document struct {
	Filename string
	Data     []byte
}

// PageResult is the outcome for one page.
type PageResult struct {
	PageNumber    int    `json:"page_number"`
	ExtractedData any    `json:"extracted_data"`
	Confidence    string `json:"confidence"`
}

// Result is the outcome of a run.
type Result struct {
	TotalPages       int             `json:"total_pages"`
	MergedData       claim.Record    `json:"merged_data"`
	PageResults      []PageResult    `json:"page_results"`
	ProcessingMethod string          `json:"processing_method"`
	ValidationErrors validate.Report `json:"validation_errors"`

	MergeStats       merge.Stats `json:"merge_stats"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	ExtractionID     string      `json:"extraction_id,omitempty"`
	Cached           bool        `json:"cached,omitempty"`
}

// LowConfidencePages returns the page numbers labeled low confidence.
func (r *Result) LowConfidencePages() []int {
	var pages []int
	for _, p := range r.PageResults {
		if p.Confidence == ConfidenceLow {
			pages = append(pages, p.PageNumber)
		}
	}
	return pages
}

// Config configures an Orchestrator.
type Config struct {
	Extractor *extract.Extractor
	Renderer  rasterize.Renderer

	// MinPages rejects documents with fewer pages. Defaults to the extractor's page cap.
	MinPages int

	// Upload limits. Empty AllowedExtensions accepts any name; MaxFileSize <= 0 disables the check.
	AllowedExtensions []string
	MaxFileSize       int64

	// Priority overrides merged values with the value from a specific page.
	Priority merge.Priority

	ProcessingMethod string
	Logger           *slog.Logger
}

// Orchestrator owns the document-level sequencing.
type Orchestrator struct {
	extractor        *extract.Extractor
	renderer         rasterize.Renderer
	minPages         int
	allowed          []string
	maxFileSize      int64
	priority         merge.Priority
	processingMethod string
	logger           *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.MinPages <= 0 {
		cfg.MinPages = cfg.Extractor.MaxPages()
	}
	if cfg.ProcessingMethod == "" {
		cfg.ProcessingMethod = DefaultProcessingMethod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		extractor:        cfg.Extractor,
		renderer:         cfg.Renderer,
		minPages:         cfg.MinPages,
		allowed:          cfg.AllowedExtensions,
		maxFileSize:      cfg.MaxFileSize,
		priority:         cfg.Priority,
		processingMethod: cfg.ProcessingMethod,
		logger:           cfg.Logger,
	}, nil
}

// Run processes one document.
func (o *Orchestrator) Run(ctx context.Context, doc Document) (*Result, error) {
	start := time.Now()

	if err := CheckUpload(doc, o.allowed, o.maxFileSize); err != nil {
		return nil, err
	}

	count, err := o.renderer.PageCount(ctx, doc.Data)
	if err != nil {
		return nil, err
	}
	if count < o.minPages {
		return nil, &PageCountError{Expected: o.minPages, Got: count}
	}

	images, err := o.renderer.Render(ctx, doc.Data, o.extractor.MaxPages())
	if err != nil {
		return nil, fmt.Errorf("failed to render pages: %w", err)
	}

	raw, err := o.extractor.Multipage(ctx, images)
	if err != nil {
		return nil, err
	}

	pages := make([]PageResult, len(raw))
	cleaned := make([]any, len(raw))
	for i, r := range raw {
		// Error and raw-fallback records are diagnostics, not form data.
		if !extract.IsError(r) && !extract.IsRaw(r) {
			r = validate.CleanResult(r)
		}
		cleaned[i] = r
		pages[i] = PageResult{
			PageNumber:    i + 1,
			ExtractedData: r,
			Confidence:    confidence(r),
		}
	}

	var (
		merged claim.Record
		stats  merge.Stats
	)
	if len(o.priority) > 0 {
		merged, stats = merge.MergeWithPriority(cleaned, o.priority)
	} else {
		merged, stats = merge.Merge(cleaned)
	}
	if stats.Skipped > 0 {
		o.logger.Warn("skipped malformed page results", "skipped", stats.Skipped)
	}

	report, err := validate.Record(merged)
	if err != nil {
		return nil, err
	}

	return &Result{
		TotalPages:       count,
		MergedData:       merged,
		PageResults:      pages,
		ProcessingMethod: o.processingMethod,
		ValidationErrors: report,
		MergeStats:       stats,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// RunFunc returns Run as a RunFunc for middleware composition.
func (o *Orchestrator) RunFunc() RunFunc {
	return o.Run
}

func confidence(result any) string {
	if extract.IsError(result) {
		return ConfidenceLow
	}
	return ConfidenceHigh
}
