// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/claimdoc/internal/config"
	"github.com/jackzampolin/claimdoc/internal/home"
	"github.com/jackzampolin/claimdoc/internal/metrics"
	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/providers"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store    *store.Store
	Pipeline pipeline.RunFunc
	Renderer rasterize.Renderer
	Metrics  *metrics.Collector
	Registry *providers.Registry
	Config   *config.Manager
	Logger   *slog.Logger
	Home     *home.Dir

	// ModelConfigured reports whether a vision model client is available.
	ModelConfigured func() bool
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the extraction store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// PipelineFrom extracts the composed extraction pipeline from context.
func PipelineFrom(ctx context.Context) pipeline.RunFunc {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// RendererFrom extracts the page renderer from context.
func RendererFrom(ctx context.Context) rasterize.Renderer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Renderer
	}
	return nil
}

// MetricsFrom extracts the run metrics collector from context.
func MetricsFrom(ctx context.Context) *metrics.Collector {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigFrom extracts the current configuration from context.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil && s.Config != nil {
		return s.Config.Get()
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// ModelConfiguredFrom reports whether a vision model is configured.
func ModelConfiguredFrom(ctx context.Context) bool {
	if s := ServicesFrom(ctx); s != nil && s.ModelConfigured != nil {
		return s.ModelConfigured()
	}
	return false
}
