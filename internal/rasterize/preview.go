package rasterize

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// PagePreview is a downscaled page thumbnail.
type PagePreview struct {
	Page   int    `json:"page"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"base64"` // data:image/png;base64,...
}

// Preview renders every page and returns thumbnails no wider than maxWidth.
// Pages are never upscaled and keep their aspect ratio. maxWidth <= 0 keeps
// the rendered size.
func Preview(ctx context.Context, r Renderer, pdf []byte, maxWidth int) ([]PagePreview, error) {
	images, err := r.Render(ctx, pdf, 0)
	if err != nil {
		return nil, err
	}
	out := make([]PagePreview, 0, len(images))
	for i, img := range images {
		p, err := Thumbnail(img, maxWidth)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		p.Page = i + 1
		out = append(out, p)
	}
	return out, nil
}

// Thumbnail scales one PNG down to maxWidth and encodes it as a data URL.
func Thumbnail(pngData []byte, maxWidth int) (PagePreview, error) {
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return PagePreview{}, fmt.Errorf("failed to decode page image: %w", err)
	}

	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), maxWidth)

	var buf bytes.Buffer
	if w == b.Dx() && h == b.Dy() {
		buf.Write(pngData)
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		if err := png.Encode(&buf, dst); err != nil {
			return PagePreview{}, fmt.Errorf("failed to encode thumbnail: %w", err)
		}
	}

	return PagePreview{
		Width:  w,
		Height: h,
		Image:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ScaledSize fits w x h into maxWidth, preserving aspect ratio.
func ScaledSize(w, h, maxWidth int) (int, int) {
	if maxWidth <= 0 || w <= maxWidth || w == 0 {
		return w, h
	}
	nh := h * maxWidth / w
	if nh < 1 {
		nh = 1
	}
	return maxWidth, nh
}
