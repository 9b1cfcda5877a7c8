package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Pipeline.MaxPages != 4 || cfg.Pipeline.MinPages != 4 {
		t.Errorf("pages = %d/%d, want 4/4", cfg.Pipeline.MaxPages, cfg.Pipeline.MinPages)
	}
	if cfg.Pipeline.PageDelay != time.Second {
		t.Errorf("PageDelay = %v, want 1s", cfg.Pipeline.PageDelay)
	}
	if cfg.Pipeline.MaxFileSize != 10*1024*1024 {
		t.Errorf("MaxFileSize = %d", cfg.Pipeline.MaxFileSize)
	}
	gemini, ok := cfg.GetLLMProvider("gemini")
	if !ok {
		t.Fatal("expected default gemini provider")
	}
	if gemini.Model != "gemini-2.5-flash" || gemini.APIKey != "${GEMINI_API_KEY}" {
		t.Errorf("gemini = %+v", gemini)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "g-key")
	cfg := DefaultConfig()
	p := cfg.LLMProviders["gemini"]
	p.APIKey = "${TEST_GEMINI_KEY}"
	cfg.LLMProviders["gemini"] = p

	rc := cfg.ToProviderRegistryConfig()
	got := rc.LLMProviders["gemini"]
	if got.APIKey != "g-key" {
		t.Errorf("APIKey = %q, want g-key", got.APIKey)
	}
	if got.RPM != 60 || got.Model != "gemini-2.5-flash" || !got.Enabled {
		t.Errorf("provider config = %+v", got)
	}

	cfg.LLMProviders["off"] = LLMProviderCfg{Type: "openai", Model: "gpt-4o"}
	if _, ok := cfg.ToProviderRegistryConfig().LLMProviders["off"]; ok {
		t.Error("disabled provider should not reach the registry config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max pages", func(c *Config) { c.Pipeline.MaxPages = 0 }},
		{"negative min pages", func(c *Config) { c.Pipeline.MinPages = -1 }},
		{"negative delay", func(c *Config) { c.Pipeline.PageDelay = -time.Second }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"bad priority", func(c *Config) { c.Pipeline.Priority = []string{"insured_info.name"} }},
		{"bad priority page", func(c *Config) { c.Pipeline.Priority = []string{"insured_info.name=0"} }},
		{"unknown default provider", func(c *Config) { c.Defaults.LLMProvider = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestNewManagerDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cm, err := NewManager("", dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := cm.Get()
	if cfg.Pipeline.MaxPages != 4 {
		t.Errorf("MaxPages = %d, want 4", cfg.Pipeline.MaxPages)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
	}
}

func TestNewManagerEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CLAIMDOC_PIPELINE_PAGE_DELAY", "250ms")
	t.Setenv("CLAIMDOC_SERVER_PORT", "9999")

	cm, err := NewManager("", dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := cm.Get()
	if cfg.Pipeline.PageDelay != 250*time.Millisecond {
		t.Errorf("PageDelay = %v, want 250ms", cfg.Pipeline.PageDelay)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Server.Port)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	cm, err := NewManager(path, dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if cm.ConfigFile() != path {
		t.Errorf("ConfigFile() = %q, want %q", cm.ConfigFile(), path)
	}
	cfg := cm.Get()
	if cfg.Pipeline.PageDelay != time.Second {
		t.Errorf("PageDelay = %v, want 1s", cfg.Pipeline.PageDelay)
	}
	if cfg.Pipeline.DPI != 300 {
		t.Errorf("DPI = %d, want 300", cfg.Pipeline.DPI)
	}
	if len(cfg.Pipeline.AllowedExtensions) != 1 || cfg.Pipeline.AllowedExtensions[0] != ".pdf" {
		t.Errorf("AllowedExtensions = %v", cfg.Pipeline.AllowedExtensions)
	}
}

func TestNewManagerRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  max_pages: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path, dir); err == nil {
		t.Error("NewManager() should reject max_pages: 0")
	}
}

func TestWatchConfigReloads(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watcher test in short mode")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  max_pages: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path, dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var reloaded atomic.Int32
	cm.OnChange(func(c *Config) {
		if c.Pipeline.MaxPages == 3 {
			reloaded.Store(1)
		}
	})
	cm.WatchConfig()

	if err := os.WriteFile(path, []byte("pipeline:\n  max_pages: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if reloaded.Load() == 1 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if reloaded.Load() != 1 {
		t.Fatal("config change was not observed")
	}
	if cm.Get().Pipeline.MaxPages != 3 {
		t.Errorf("MaxPages = %d, want 3", cm.Get().Pipeline.MaxPages)
	}
}
