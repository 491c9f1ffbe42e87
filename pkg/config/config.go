package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultListen         = "127.0.0.1:8710"
	DefaultFreshnessDays  = 30
	DefaultCacheTTL       = 5 * time.Minute
	DefaultCountryCode    = 2840
	DefaultCountry        = "US"
	DefaultSyncInterval   = 24 * time.Hour
	DefaultSyncScope      = "country"
	DefaultEndpoint       = "https://api.dataforseo.com/v3/serp/google/locations"
	DefaultProviderTimeout = 2 * time.Minute
	DefaultAdapterTimeout = 3 * time.Second
	DefaultCallTTL        = 7 * 24 * time.Hour
	DefaultPruneInterval  = 6 * time.Hour
	DefaultStripPrefix    = "wedding "
	DefaultDBName         = "vendorscout.db"
)

// Environment variables that override provider credentials so they can stay
// out of the config file.
const (
	EnvProviderLogin    = "VENDORSCOUT_PROVIDER_LOGIN"
	EnvProviderPassword = "VENDORSCOUT_PROVIDER_PASSWORD"
)

type Config struct {
	StorageDir string          `toml:"storage_dir"`
	Listen     string          `toml:"listen"`
	Locations  LocationsConfig `toml:"locations"`
	Provider   ProviderConfig  `toml:"provider"`
	Search     SearchConfig    `toml:"search"`
	Category   CategoryConfig  `toml:"category"`
	Sources    []SourceConfig  `toml:"sources"`
}

type LocationsConfig struct {
	// FreshnessDays is the age after which stored locations are stale.
	FreshnessDays int      `toml:"freshness_days"`
	CacheTTL      Duration `toml:"cache_ttl"`
	// DefaultCode is returned when a location cannot be resolved.
	DefaultCode  int      `toml:"default_code"`
	Country      string   `toml:"country"`
	SyncInterval Duration `toml:"sync_interval"`
	// SyncScope is "all" or "country".
	SyncScope string `toml:"sync_scope"`
}

type ProviderConfig struct {
	Endpoint string `toml:"endpoint"`
	Login    string `toml:"login"`
	Password string `toml:"password"`
	// LocationsFile, when set, is read instead of calling the endpoint.
	LocationsFile string   `toml:"locations_file,omitempty"`
	Timeout       Duration `toml:"timeout"`
}

type SearchConfig struct {
	AdapterTimeout Duration `toml:"adapter_timeout"`
	RecordCalls    bool     `toml:"record_calls"`
	CallTTL        Duration `toml:"call_ttl"`
	PruneInterval  Duration `toml:"prune_interval"`
}

type CategoryConfig struct {
	// StripPrefix is removed from keywords before classification. An explicit
	// empty string disables stripping.
	StripPrefix *string `toml:"strip_prefix,omitempty"`
}

// Prefix returns the effective strip prefix.
func (c CategoryConfig) Prefix() string {
	if c.StripPrefix == nil {
		return DefaultStripPrefix
	}
	return *c.StripPrefix
}

type SourceConfig struct {
	Name  string  `toml:"name"`
	Type  string  `toml:"type"`
	Limit int     `toml:"limit,omitempty"`
	Cost  float64 `toml:"cost,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// DefaultSources is the source list used when the config declares none.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "listings", Type: "listings", Limit: 20},
		{Name: "business", Type: "business", Limit: 30},
		{Name: "social", Type: "social", Limit: 20},
	}
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	c := &Config{StorageDir: storageDir}
	c.applyDefaults()
	return c, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}

	l := &c.Locations
	if l.FreshnessDays <= 0 {
		l.FreshnessDays = DefaultFreshnessDays
	}
	if l.CacheTTL.Duration <= 0 {
		l.CacheTTL = Duration{DefaultCacheTTL}
	}
	if l.DefaultCode == 0 {
		l.DefaultCode = DefaultCountryCode
	}
	if l.Country == "" {
		l.Country = DefaultCountry
	}
	l.Country = strings.ToUpper(l.Country)
	if l.SyncInterval.Duration <= 0 {
		l.SyncInterval = Duration{DefaultSyncInterval}
	}
	if l.SyncScope == "" {
		l.SyncScope = DefaultSyncScope
	}

	p := &c.Provider
	if p.Endpoint == "" {
		p.Endpoint = DefaultEndpoint
	}
	if p.Timeout.Duration <= 0 {
		p.Timeout = Duration{DefaultProviderTimeout}
	}
	if v := os.Getenv(EnvProviderLogin); v != "" {
		p.Login = v
	}
	if v := os.Getenv(EnvProviderPassword); v != "" {
		p.Password = v
	}

	s := &c.Search
	if s.AdapterTimeout.Duration <= 0 {
		s.AdapterTimeout = Duration{DefaultAdapterTimeout}
	}
	if s.CallTTL.Duration <= 0 {
		s.CallTTL = Duration{DefaultCallTTL}
	}
	if s.PruneInterval.Duration <= 0 {
		s.PruneInterval = Duration{DefaultPruneInterval}
	}

	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
	for i := range c.Sources {
		if c.Sources[i].Type == "" {
			c.Sources[i].Type = c.Sources[i].Name
		}
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	switch c.Locations.SyncScope {
	case "all", "country":
	default:
		return fmt.Errorf("invalid locations.sync_scope %q (want all or country)", c.Locations.SyncScope)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Limit < 0 {
			return fmt.Errorf("source %s: limit must not be negative", s.Name)
		}
		if s.Cost < 0 {
			return fmt.Errorf("source %s: cost must not be negative", s.Name)
		}
	}
	return nil
}

// DBPath returns the SQLite database path inside the storage directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, DefaultDBName)
}

// SourceCosts maps source names to their configured per-query cost.
func (c *Config) SourceCosts() map[string]float64 {
	costs := make(map[string]float64, len(c.Sources))
	for _, s := range c.Sources {
		costs[s.Name] = s.Cost
	}
	return costs
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/vendorscout", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns (and creates) the XDG data directory.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "vendorscout")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns (and creates) the XDG config directory.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "vendorscout")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
