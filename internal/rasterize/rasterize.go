// Package rasterize turns claim PDFs into page images for the vision model.
// Page counting and structural validation use pdfcpu; rendering shells out
// to pdftoppm (poppler-utils), which draws pages the way a viewer would.
package rasterize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

// DefaultDPI matches the resolution the model prompts were tuned on.
const DefaultDPI = 300

// ErrInvalidPDF is returned when the bytes are not a readable PDF.
var ErrInvalidPDF = errors.New("invalid PDF")

// Renderer produces PNG images for the pages of a PDF.
type Renderer interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context, pdf []byte) (int, error)

	// Render returns one PNG per page in page order. maxPages <= 0 renders
	// every page.
	Render(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error)
}

// PageCount reads the page count with pdfcpu.
func PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return n, nil
}

// Config configures a Pdftoppm renderer.
type Config struct {
	Binary  string // default: "pdftoppm" on PATH
	DPI     int    // default: DefaultDPI
	Workers int    // concurrent page renders (default: NumCPU)
	Logger  *slog.Logger
}

// Pdftoppm renders pages by running the pdftoppm binary, one process per page.
type Pdftoppm struct {
	binary  string
	dpi     int
	workers int
	logger  *slog.Logger
}

// NewPdftoppm creates a renderer with defaults applied.
func NewPdftoppm(cfg Config) *Pdftoppm {
	if cfg.Binary == "" {
		cfg.Binary = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pdftoppm{
		binary:  cfg.Binary,
		dpi:     cfg.DPI,
		workers: cfg.Workers,
		logger:  cfg.Logger,
	}
}

// Available reports whether the pdftoppm binary can be found.
func (p *Pdftoppm) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// PageCount implements Renderer.
func (p *Pdftoppm) PageCount(_ context.Context, pdf []byte) (int, error) {
	return PageCount(pdf)
}

// Render implements Renderer. The PDF is written to a temp directory once
// and pages are rendered concurrently, bounded by the worker count.
func (p *Pdftoppm) Render(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error) {
	total, err := PageCount(pdf)
	if err != nil {
		return nil, err
	}
	n := total
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}
	if n == 0 {
		return nil, nil
	}

	tmpDir, err := os.MkdirTemp("", "claimdoc-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	images := make([][]byte, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for page := 1; page <= n; page++ {
		g.Go(func() error {
			img, err := p.renderPage(gctx, pdfPath, tmpDir, page)
			if err != nil {
				return fmt.Errorf("failed to render page %d: %w", page, err)
			}
			images[page-1] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("rendered pages", "pages", n, "total", total, "dpi", p.dpi)
	return images, nil
}

// renderPage renders a single page with pdftoppm.
func (p *Pdftoppm) renderPage(ctx context.Context, pdfPath, dir string, page int) ([]byte, error) {
	// -png: output PNG format
	// -f/-l: first and last page to render
	// -r: resolution in DPI
	// -singlefile: don't add page number suffix
	prefix := filepath.Join(dir, fmt.Sprintf("page_%04d", page))
	pageStr := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, p.binary,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(p.dpi),
		"-singlefile",
		pdfPath,
		prefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

var _ Renderer = (*Pdftoppm)(nil)
