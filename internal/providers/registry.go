package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds the configured model clients.
// It supports config-driven instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	configs    map[string]LLMProviderConfig
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		configs:    make(map[string]LLMProviderConfig),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// LLMProviderConfig describes one model client with its API key resolved.
type LLMProviderConfig struct {
	Type        string // "gemini", "openai", "openrouter"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	RPM         int
	MaxRetries  int
	Timeout     time.Duration
	Enabled     bool
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with an API key are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered and providers
// with changed settings are re-created.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		want[name] = true

		prev, hasExisting := r.configs[name]
		if hasExisting && prev == provCfg {
			continue
		}
		r.llmClients[name] = createLLMClient(name, provCfg)
		r.configs[name] = provCfg
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type, "model", provCfg.Model)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type, "model", provCfg.Model)
			}
		}
	}

	for name := range r.configs {
		if !want[name] {
			delete(r.llmClients, name)
			delete(r.configs, name)
			if r.logger != nil {
				r.logger.Info("unregistered LLM client", "name", name)
			}
		}
	}
}

func createLLMClient(name string, cfg LLMProviderConfig) LLMClient {
	return NewOpenAIClient(OpenAIConfig{
		Name:         name,
		Type:         cfg.Type,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		RPM:          cfg.RPM,
		MaxRetries:   cfg.MaxRetries,
		Timeout:      cfg.Timeout,
	})
}
