package rasterize

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/jackzampolin/claimdoc/internal/testutil"
)

func TestPageCount(t *testing.T) {
	for _, pages := range []int{1, 4, 6} {
		n, err := PageCount(testutil.MinimalPDF(pages))
		if err != nil {
			t.Fatalf("PageCount(%d pages) error = %v", pages, err)
		}
		if n != pages {
			t.Errorf("PageCount() = %d, want %d", n, pages)
		}
	}

	if _, err := PageCount([]byte("not a pdf")); !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("PageCount(garbage) error = %v, want ErrInvalidPDF", err)
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"downscale", 2480, 3508, 800, 800, 1131},
		{"never upscale", 400, 600, 800, 400, 600},
		{"exact", 800, 1000, 800, 800, 1000},
		{"no limit", 2480, 3508, 0, 2480, 3508},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledSize(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ScaledSize() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	r := &Fake{Pages: 4, Images: [][]byte{testutil.PNG(1600, 2000), testutil.PNG(400, 300)}}

	previews, err := Preview(context.Background(), r, nil, 800)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(previews) != 4 {
		t.Fatalf("Preview() = %d pages, want 4", len(previews))
	}
	if p := previews[0]; p.Page != 1 || p.Width != 800 || p.Height != 1000 {
		t.Errorf("previews[0] = page %d %dx%d, want page 1 800x1000", p.Page, p.Width, p.Height)
	}
	if p := previews[1]; p.Width != 400 || p.Height != 300 {
		t.Errorf("previews[1] = %dx%d, want unscaled 400x300", p.Width, p.Height)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(previews[0].Image, prefix) {
		t.Fatalf("Image should be a PNG data URL, got %.40q", previews[0].Image)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(previews[0].Image, prefix))
	if err != nil {
		t.Fatalf("decode data URL: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 1000 {
		t.Errorf("thumbnail bounds = %v, want 800x1000", b)
	}
}

func TestPreviewBadImage(t *testing.T) {
	r := &Fake{Pages: 1, Images: [][]byte{[]byte("nope")}}
	if _, err := Preview(context.Background(), r, nil, 800); err == nil {
		t.Error("Preview() should fail on undecodable page image")
	}
}

func TestFakeRender(t *testing.T) {
	r := &Fake{Pages: 6}
	images, err := r.Render(context.Background(), nil, 4)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(images) != 4 {
		t.Errorf("Render() = %d images, want 4", len(images))
	}
	if r.Renders() != 1 {
		t.Errorf("Renders() = %d, want 1", r.Renders())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, nil, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Render() with cancelled ctx error = %v, want context.Canceled", err)
	}
}

func TestPdftoppmRender(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pdftoppm render in short mode")
	}
	r := NewPdftoppm(Config{DPI: 50, Workers: 2})
	if !r.Available() {
		t.Skip("pdftoppm not installed")
	}

	images, err := r.Render(context.Background(), testutil.MinimalPDF(5), 4)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(images) != 4 {
		t.Fatalf("Render() = %d images, want 4", len(images))
	}
	for i, img := range images {
		cfg, err := png.DecodeConfig(bytes.NewReader(img))
		if err != nil {
			t.Fatalf("page %d is not a PNG: %v", i+1, err)
		}
		// 8.5in at 50 DPI
		if cfg.Width < 420 || cfg.Width > 430 {
			t.Errorf("page %d width = %d, want ~425", i+1, cfg.Width)
		}
	}
}
