package rasterize

import (
	"context"
	"sync/atomic"
)

// Fake is an in-memory Renderer for tests. It reports Pages pages and
// renders Images, cycling through them when there are fewer images than
// pages.
type Fake struct {
	Pages  int
	Images [][]byte
	Err    error

	renders atomic.Int64
}

// PageCount implements Renderer.
func (f *Fake) PageCount(_ context.Context, _ []byte) (int, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Pages, nil
}

// Render implements Renderer.
func (f *Fake) Render(ctx context.Context, _ []byte, maxPages int) ([][]byte, error) {
	f.renders.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := f.Pages
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}
	out := make([][]byte, n)
	for i := range out {
		if len(f.Images) > 0 {
			out[i] = f.Images[i%len(f.Images)]
		} else {
			out[i] = []byte{byte(i + 1)}
		}
	}
	return out, nil
}

// Renders returns how many times Render was called.
func (f *Fake) Renders() int {
	return int(f.renders.Load())
}

var _ Renderer = (*Fake)(nil)
