// Package extract reads claim form pages through a vision model and turns the
// model's free-text replies into page results.
//
// A model failure on one page becomes an error record for that page and never
// stops the remaining pages. A reply that is not JSON becomes a raw fallback
// record. Pages run strictly in order with a pause between calls.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/claimdoc/internal/prompts"
)

const (
	// DefaultMaxPages is the number of form pages extracted per document.
	DefaultMaxPages = 4
	// DefaultPageDelay is the pause between consecutive model calls.
	DefaultPageDelay = time.Second
)

// Model is the vision capability: a prompt and one page image in, text out.
type Model interface {
	Generate(ctx context.Context, prompt string, image []byte) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string, image []byte) (string, error)

func (f ModelFunc) Generate(ctx context.Context, prompt string, image []byte) (string, error) {
	return f(ctx, prompt, image)
}

// Config configures an Extractor.
type Config struct {
	Model Model

	// MaxPages caps how many images are read. Defaults to 4.
	MaxPages int

	// PageDelay is the pause between consecutive model calls. Zero means
	// DefaultPageDelay.
	PageDelay time.Duration

	// NoDelay turns the pause off entirely.
	NoDelay bool

	// PageTimeout bounds each model call. Zero means no extra bound.
	PageTimeout time.Duration

	// CheckShape logs a warning when a parsed result does not match the
	// skeleton its prompt asked for.
	CheckShape bool

	Logger *slog.Logger

	// Pause waits between pages. Defaults to a timer that honours ctx.
	Pause func(ctx context.Context, d time.Duration) error
}

// Extractor runs the per-page extraction.
type Extractor struct {
	model       Model
	maxPages    int
	pageDelay   time.Duration
	pageTimeout time.Duration
	shapes      *ShapeChecker
	logger      *slog.Logger
	pause       func(ctx context.Context, d time.Duration) error
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	switch {
	case cfg.NoDelay:
		cfg.PageDelay = 0
	case cfg.PageDelay <= 0:
		cfg.PageDelay = DefaultPageDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Pause == nil {
		cfg.Pause = sleep
	}
	e := &Extractor{
		model:       cfg.Model,
		maxPages:    cfg.MaxPages,
		pageDelay:   cfg.PageDelay,
		pageTimeout: cfg.PageTimeout,
		logger:      cfg.Logger,
		pause:       cfg.Pause,
	}
	if cfg.CheckShape {
		e.shapes = NewShapeChecker()
	}
	return e
}

// MaxPages returns the configured page cap.
func (e *Extractor) MaxPages() int {
	return e.maxPages
}

// Page extracts one page. It always returns a result: parsed JSON, an error
// record, or a raw fallback record.
func (e *Extractor) Page(ctx context.Context, image []byte, page int) any {
	prompt := prompts.Get(page)
	if !prompts.Known(page) {
		e.logger.Debug("no prompt for page, using last page prompt", "page", page, "prompt", prompt.Key)
	}

	callCtx := WithPageInfo(ctx, PageInfo{
		Page:       page,
		PromptKey:  prompt.Key,
		PromptHash: prompt.Hash,
	})
	if e.pageTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, e.pageTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := e.generate(callCtx, prompt.Text, image)
	if err != nil {
		e.logger.Warn("page extraction failed", "page", page, "error", err, "duration", time.Since(start))
		return ErrorRecord(page, err)
	}

	result := ParseResponse(text)
	if IsRaw(result) {
		e.logger.Warn("page reply is not JSON", "page", page, "length", len(text))
		return result
	}
	if e.shapes != nil {
		if err := e.shapes.Check(prompt, result); err != nil {
			e.logger.Warn("unexpected page shape", "page", page, "error", err)
		}
	}
	e.logger.Debug("page extracted", "page", page, "duration", time.Since(start))
	return result
}

func (e *Extractor) generate(ctx context.Context, prompt string, image []byte) (text string, err error) {
	if e.model == nil {
		return "", errNoModel
	}
	return e.model.Generate(ctx, prompt, image)
}

// Multipage extracts up to MaxPages images in order, numbering pages from 1
// and pausing PageDelay between consecutive pages. The only error is
// cancellation of ctx, in which case partial results are discarded.
func (e *Extractor) Multipage(ctx context.Context, images [][]byte) ([]any, error) {
	n := len(images)
	if n > e.maxPages {
		e.logger.Info("document has more pages than extracted", "pages", n, "max_pages", e.maxPages)
		n = e.maxPages
	}

	results := make([]any, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, e.Page(ctx, images[i], i+1))
		if i < n-1 && e.pageDelay > 0 {
			if err := e.pause(ctx, e.pageDelay); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
