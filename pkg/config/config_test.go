package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Locations.FreshnessDays != 30 {
		t.Errorf("freshness days = %d, want 30", cfg.Locations.FreshnessDays)
	}
	if cfg.Locations.CacheTTL.Duration != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.Locations.CacheTTL)
	}
	if cfg.Locations.DefaultCode != 2840 {
		t.Errorf("default code = %d, want 2840", cfg.Locations.DefaultCode)
	}
	if cfg.Search.AdapterTimeout.Duration != 3*time.Second {
		t.Errorf("adapter timeout = %v, want 3s", cfg.Search.AdapterTimeout)
	}
	if cfg.Category.Prefix() != "wedding " {
		t.Errorf("strip prefix = %q, want %q", cfg.Category.Prefix(), "wedding ")
	}
	if len(cfg.Sources) != 3 || cfg.Sources[0].Name != "listings" {
		t.Errorf("unexpected default sources: %+v", cfg.Sources)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
storage_dir = "` + dir + `"

[locations]
freshness_days = 7
cache_ttl = "1m"
country = "us"
sync_scope = "all"

[category]
strip_prefix = ""

[[sources]]
name = "social"
limit = 5

[[sources]]
name = "paid"
type = "business"
cost = 0.25
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.StorageDir != dir {
		t.Errorf("storage dir = %q", cfg.StorageDir)
	}
	if cfg.Locations.FreshnessDays != 7 || cfg.Locations.CacheTTL.Duration != time.Minute {
		t.Errorf("locations not loaded: %+v", cfg.Locations)
	}
	if cfg.Locations.Country != "US" {
		t.Errorf("country = %q, want upper-cased US", cfg.Locations.Country)
	}
	if cfg.Category.Prefix() != "" {
		t.Errorf("explicit empty prefix should disable stripping, got %q", cfg.Category.Prefix())
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].Type != "social" {
		t.Errorf("type should default to name, got %q", cfg.Sources[0].Type)
	}
	if got := cfg.SourceCosts()["paid"]; got != 0.25 {
		t.Errorf("cost = %v, want 0.25", got)
	}
	if cfg.DBPath() != filepath.Join(dir, DefaultDBName) {
		t.Errorf("db path = %q", cfg.DBPath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad scope", func(c *Config) { c.Locations.SyncScope = "planet" }, "sync_scope"},
		{"duplicate", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }, "duplicate"},
		{"missing name", func(c *Config) { c.Sources[1].Name = "" }, "name is required"},
		{"negative limit", func(c *Config) { c.Sources[0].Limit = -1 }, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{StorageDir: t.TempDir()}
			c.applyDefaults()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvProviderLogin, "env-login")
	t.Setenv(EnvProviderPassword, "env-secret")

	c := &Config{Provider: ProviderConfig{Login: "file-login"}}
	c.applyDefaults()

	if c.Provider.Login != "env-login" || c.Provider.Password != "env-secret" {
		t.Fatalf("env credentials not applied: %+v", c.Provider)
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")

	c := &Config{StorageDir: filepath.Join(dir, "data")}
	if err := c.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if loaded.StorageDir != c.StorageDir {
		t.Errorf("storage dir = %q, want %q", loaded.StorageDir, c.StorageDir)
	}
	if len(loaded.Sources) != 3 {
		t.Errorf("template sources = %d, want 3", len(loaded.Sources))
	}
}
