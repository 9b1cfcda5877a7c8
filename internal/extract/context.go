package extract

import (
	"context"
	"errors"
)

var errNoModel = errors.New("no vision model configured")

// PageInfo describes the page a model call is made for.
type PageInfo struct {
	Page       int
	PromptKey  string
	PromptHash string
}

type pageInfoKey struct{}

// WithPageInfo attaches page info to ctx for call recorders.
func WithPageInfo(ctx context.Context, info PageInfo) context.Context {
	return context.WithValue(ctx, pageInfoKey{}, info)
}

// PageInfoFrom returns the page info attached to ctx, if any.
func PageInfoFrom(ctx context.Context) (PageInfo, bool) {
	info, ok := ctx.Value(pageInfoKey{}).(PageInfo)
	return info, ok
}
