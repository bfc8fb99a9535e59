package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ResourceConfig describes one bookable resource kind.
type ResourceConfig struct {
	// Name is the canonical resource-kind name shown to users.
	Name string `yaml:"name" json:"name"`
	// Color is the display color for this kind's timeline units.
	Color string `yaml:"color" json:"color"`
	// HourlyRate is a decimal string (e.g. "250"); kept as a string so
	// money never round-trips through YAML floats.
	HourlyRate string `yaml:"hourly_rate" json:"hourly_rate"`
}

// FeedConfig describes an external ICS calendar whose events block
// bookings on the mapped resources.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in conflict details.
	Name string `yaml:"name" json:"name"`
	// Resources are the catalog kinds this feed's events occupy.
	Resources []string `yaml:"resources" json:"resources"`
}

// WindowConfig controls the rolling display window, in days relative
// to "now". The actual bounds are re-derived on every request.
type WindowConfig struct {
	BackDays  int `yaml:"back_days" json:"back_days"`
	AheadDays int `yaml:"ahead_days" json:"ahead_days"`
}

// RulesConfig holds the submission validation rules.
type RulesConfig struct {
	// MinAdvanceHours is how far ahead of the requested start a
	// submission must arrive.
	MinAdvanceHours int `yaml:"min_advance_hours" json:"min_advance_hours"`
	// OfficeStart / OfficeEnd bound allowed booking hours, "HH:MM".
	OfficeStart string `yaml:"office_start" json:"office_start"`
	OfficeEnd   string `yaml:"office_end" json:"office_end"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone bookings are displayed and
	// windowed in (e.g. "Asia/Kolkata").
	Timezone string `yaml:"timezone" json:"timezone"`

	// DatabaseURL is the postgres DSN for the booking store.
	DatabaseURL string `yaml:"database_url" json:"database_url"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// refreshing external feeds and expiring the layout cache.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheTTLHours is the layout cache freshness period.
	CacheTTLHours int `yaml:"cache_ttl_hours" json:"cache_ttl_hours"`

	Window WindowConfig `yaml:"window" json:"window"`
	Rules  RulesConfig  `yaml:"rules" json:"rules"`

	// Resources is the ordered resource catalog.
	Resources []ResourceConfig `yaml:"resources" json:"resources"`

	// Feeds are external calendars imported as blocking bookings.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// FeedCacheDir is where feed HTTP cache metadata/bodies live.
	FeedCacheDir string `yaml:"feed_cache_dir" json:"feed_cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration. The default
// catalog mirrors the original deployment's resource list.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "Asia/Kolkata",
		RefreshCron:   "*/15 * * * *",
		CacheTTLHours: 7 * 24,
		Window:        WindowConfig{BackDays: 7, AheadDays: 21},
		Rules: RulesConfig{
			MinAdvanceHours: 18,
			OfficeStart:     "09:00",
			OfficeEnd:       "18:00",
		},
		Resources: []ResourceConfig{
			{Name: "3D Printer(FDM)", Color: "#1EE56A", HourlyRate: "0"},
			{Name: "3D Printer(SLA)", Color: "#E51E64", HourlyRate: "0"},
			{Name: "Digital Microscope", Color: "#E5B71E", HourlyRate: "200"},
			{Name: "Electronics Test Bench", Color: "#1E88E5", HourlyRate: "1000"},
			{Name: "High-end Workstation", Color: "#E5DE1E", HourlyRate: "750"},
			{Name: "iMAC", Color: "#875F0E", HourlyRate: "250"},
			{Name: "PCB Prototyping Machine", Color: "#6A1EE5", HourlyRate: "1000"},
			{Name: "Solder Station", Color: "#E21EE5", HourlyRate: "100"},
		},
		Feeds:        []FeedConfig{},
		FeedCacheDir: "./var/feed-cache",
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheTTLHours <= 0 {
		c.CacheTTLHours = def.CacheTTLHours
	}
	if c.Window.BackDays < 0 {
		c.Window.BackDays = def.Window.BackDays
	}
	if c.Window.BackDays == 0 && c.Window.AheadDays == 0 {
		c.Window = def.Window
	}
	if c.Window.AheadDays <= 0 {
		c.Window.AheadDays = def.Window.AheadDays
	}
	if c.Rules.MinAdvanceHours < 0 {
		c.Rules.MinAdvanceHours = def.Rules.MinAdvanceHours
	}
	if c.Rules.OfficeStart == "" {
		c.Rules.OfficeStart = def.Rules.OfficeStart
	}
	if c.Rules.OfficeEnd == "" {
		c.Rules.OfficeEnd = def.Rules.OfficeEnd
	}
	if c.Resources == nil {
		c.Resources = def.Resources
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.FeedCacheDir == "" {
		c.FeedCacheDir = def.FeedCacheDir
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".bookcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
