package endpoints

import (
	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/pgcontainer"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DBManager         *pgcontainer.Manager
	MaxFileSize       int64
	PreviewWidth      int
	AllowedExtensions []string
	SwaggerSpecPath   string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return append(TopLevel(cfg), ExtractionCommands()...)
}

// TopLevel returns the endpoints whose commands sit directly under "api".
func TopLevel(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&RootEndpoint{},
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DBManager: cfg.DBManager},

		// Extraction endpoints
		&ExtractEndpoint{MaxFileSize: cfg.MaxFileSize},
		&PreviewEndpoint{
			MaxWidth:          cfg.PreviewWidth,
			MaxFileSize:       cfg.MaxFileSize,
			AllowedExtensions: cfg.AllowedExtensions,
		},

		&MetricsEndpoint{},
		&ListPromptsEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}

// ExtractionCommands returns endpoints for stored extractions.
// This groups their commands under the "extractions" subcommand.
func ExtractionCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListExtractionsEndpoint{},
		&ExportEndpoint{},
		&GetExtractionEndpoint{},
		&DeleteExtractionEndpoint{},
		&AuditEndpoint{},
		&LLMCallsEndpoint{},
	}
}
