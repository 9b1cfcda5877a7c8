package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds claimdoc configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LogLevel     string                    `mapstructure:"log_level" yaml:"log_level"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Pipeline     PipelineCfg               `mapstructure:"pipeline" yaml:"pipeline"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	Database     DatabaseCfg               `mapstructure:"database" yaml:"database"`
	Cache        CacheCfg                  `mapstructure:"cache" yaml:"cache"`
}

// LLMProviderCfg configures a vision model endpoint.
type LLMProviderCfg struct {
	Type        string        `mapstructure:"type" yaml:"type"`         // "gemini", "openai", "openrouter"
	Model       string        `mapstructure:"model" yaml:"model"`       // Model name
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"` // Overrides the provider endpoint
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RateLimit   int           `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"`
}

// PipelineCfg controls document extraction.
type PipelineCfg struct {
	// MaxPages is how many pages are sent to the model.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// MinPages rejects shorter documents before processing. Zero disables the check.
	MinPages int `mapstructure:"min_pages" yaml:"min_pages"`
	// PageDelay is the pause between page requests. Zero disables it.
	PageDelay         time.Duration  `mapstructure:"page_delay" yaml:"page_delay"`
	PageTimeout       time.Duration  `mapstructure:"page_timeout" yaml:"page_timeout"`
	DPI               int            `mapstructure:"pdf_dpi" yaml:"pdf_dpi"`
	RenderWorkers     int            `mapstructure:"render_workers" yaml:"render_workers"`
	MaxFileSize       int64          `mapstructure:"max_file_size" yaml:"max_file_size"`
	AllowedExtensions []string       `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
	ProcessingMethod  string         `mapstructure:"processing_method" yaml:"processing_method"`
	Priority          []string       `mapstructure:"priority" yaml:"priority"` // "dotted.path=page"
	PreviewWidth      int            `mapstructure:"preview_width" yaml:"preview_width"`
	CheckShape        bool           `mapstructure:"check_shape" yaml:"check_shape"`
}

// ServerCfg configures the HTTP and gRPC listeners.
type ServerCfg struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           string   `mapstructure:"port" yaml:"port"`
	GRPCPort       string   `mapstructure:"grpc_port" yaml:"grpc_port"` // empty disables gRPC health
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseCfg selects and tunes the store.
type DatabaseCfg struct {
	Driver           string        `mapstructure:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN              string        `mapstructure:"dsn" yaml:"dsn"`       // empty uses {home}/claimdoc.db for sqlite
	MaxConns         int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns" yaml:"min_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout"`
	Managed          ManagedDBCfg  `mapstructure:"managed" yaml:"managed"`
}

// ManagedDBCfg holds the local Postgres container configuration.
type ManagedDBCfg struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Image         string `mapstructure:"image" yaml:"image"`
	Port          string `mapstructure:"port" yaml:"port"`
	User          string `mapstructure:"user" yaml:"user"`
	Password      string `mapstructure:"password" yaml:"password"` // supports ${ENV_VAR} syntax
	Database      string `mapstructure:"database" yaml:"database"`
}

// CacheCfg configures the extraction result cache.
type CacheCfg struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LLMProviders: map[string]LLMProviderCfg{
			"gemini": {
				Type:       "gemini",
				Model:      "gemini-2.5-flash",
				APIKey:     "${GEMINI_API_KEY}",
				MaxTokens:  4096,
				RateLimit:  60,
				MaxRetries: 2,
				Timeout:    60 * time.Second,
				Enabled:    true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "gemini",
		},
		Pipeline: PipelineCfg{
			MaxPages:          4,
			MinPages:          4,
			PageDelay:         time.Second,
			PageTimeout:       90 * time.Second,
			DPI:               300,
			RenderWorkers:     4,
			MaxFileSize:       10 * 1024 * 1024,
			AllowedExtensions: []string{".pdf"},
			ProcessingMethod:  "pdftoppm + Gemini Vision API",
			Priority:          []string{},
			PreviewWidth:      800,
			CheckShape:        true,
		},
		Server: ServerCfg{
			Host:           "127.0.0.1",
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseCfg{
			Driver:           "sqlite",
			MaxConns:         10,
			MinConns:         1,
			ConnMaxLifetime:  time.Hour,
			ConnMaxIdleTime:  10 * time.Minute,
			StatementTimeout: 30 * time.Second,
			Managed: ManagedDBCfg{
				ContainerName: "claimdoc-postgres",
				Image:         "postgres:16-alpine",
				Port:          "5433",
				User:          "claimdoc",
				Password:      "${CLAIMDOC_DB_PASSWORD}",
				Database:      "claimdoc",
			},
		},
		Cache: CacheCfg{
			Enabled: true,
			TTL:     time.Hour,
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Validate checks for settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.MaxPages <= 0 {
		return fmt.Errorf("pipeline.max_pages must be positive, got %d", c.Pipeline.MaxPages)
	}
	if c.Pipeline.MinPages < 0 {
		return fmt.Errorf("pipeline.min_pages must not be negative, got %d", c.Pipeline.MinPages)
	}
	if c.Pipeline.PageDelay < 0 {
		return fmt.Errorf("pipeline.page_delay must not be negative")
	}
	if c.Pipeline.DPI <= 0 {
		return fmt.Errorf("pipeline.pdf_dpi must be positive, got %d", c.Pipeline.DPI)
	}
	if c.Pipeline.MaxFileSize <= 0 {
		return fmt.Errorf("pipeline.max_file_size must be positive")
	}
	for _, p := range c.Pipeline.Priority {
		path, page, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return fmt.Errorf("pipeline.priority entry %q must look like path=page", p)
		}
		if n, err := strconv.Atoi(strings.TrimSpace(page)); err != nil || n < 1 {
			return fmt.Errorf("pipeline.priority entry %q has an invalid page", p)
		}
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Defaults.LLMProvider != "" {
		if _, ok := c.LLMProviders[c.Defaults.LLMProvider]; !ok {
			return fmt.Errorf("defaults.llm_provider %q is not configured", c.Defaults.LLMProvider)
		}
	}
	return nil
}
