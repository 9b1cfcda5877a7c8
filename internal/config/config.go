package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/claimdoc/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. CLAIMDOC_PIPELINE_MAX_PAGES.
const EnvPrefix = "CLAIMDOC"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// cfgFile may be empty, in which case config.yaml is looked up in the
// working directory and then in homeDir.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload messages.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	// Environment variables with CLAIMDOC_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir != "" {
			v.AddConfigPath(homeDir)
		}
		v.AddConfigPath("$HOME/.claimdoc")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf key so environment overrides apply to them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("llm_providers", d.LLMProviders)
	v.SetDefault("defaults.llm_provider", d.Defaults.LLMProvider)

	v.SetDefault("pipeline.max_pages", d.Pipeline.MaxPages)
	v.SetDefault("pipeline.min_pages", d.Pipeline.MinPages)
	v.SetDefault("pipeline.page_delay", d.Pipeline.PageDelay)
	v.SetDefault("pipeline.page_timeout", d.Pipeline.PageTimeout)
	v.SetDefault("pipeline.pdf_dpi", d.Pipeline.DPI)
	v.SetDefault("pipeline.render_workers", d.Pipeline.RenderWorkers)
	v.SetDefault("pipeline.max_file_size", d.Pipeline.MaxFileSize)
	v.SetDefault("pipeline.allowed_extensions", d.Pipeline.AllowedExtensions)
	v.SetDefault("pipeline.processing_method", d.Pipeline.ProcessingMethod)
	v.SetDefault("pipeline.priority", d.Pipeline.Priority)
	v.SetDefault("pipeline.preview_width", d.Pipeline.PreviewWidth)
	v.SetDefault("pipeline.check_shape", d.Pipeline.CheckShape)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.grpc_port", d.Server.GRPCPort)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.min_conns", d.Database.MinConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", d.Database.ConnMaxIdleTime)
	v.SetDefault("database.statement_timeout", d.Database.StatementTimeout)
	v.SetDefault("database.managed.enabled", d.Database.Managed.Enabled)
	v.SetDefault("database.managed.container_name", d.Database.Managed.ContainerName)
	v.SetDefault("database.managed.image", d.Database.Managed.Image)
	v.SetDefault("database.managed.port", d.Database.Managed.Port)
	v.SetDefault("database.managed.user", d.Database.Managed.User)
	v.SetDefault("database.managed.password", d.Database.Managed.Password)
	v.SetDefault("database.managed.database", d.Database.Managed.Database)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the config was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A reload that fails to
// parse or validate keeps the previous config.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.mu.RLock()
			logger := cm.logger
			cm.mu.RUnlock()
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		cm.apply(cfg)
	})
	cm.v.WatchConfig()
}

func (cm *Manager) apply(cfg *Config) {
	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}

	for name, llm := range c.EnabledLLMProviders() {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:        llm.Type,
			Model:       llm.Model,
			APIKey:      ResolveEnvVars(llm.APIKey),
			BaseURL:     llm.BaseURL,
			Temperature: llm.Temperature,
			MaxTokens:   llm.MaxTokens,
			RPM:         llm.RateLimit,
			MaxRetries:  llm.MaxRetries,
			Timeout:     llm.Timeout,
			Enabled:     llm.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# claimdoc configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export GEMINI_API_KEY=xxx
# Durations are in nanoseconds when written by "claimdoc config init"; strings like "1s" also work.

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}
