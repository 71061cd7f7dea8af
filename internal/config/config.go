package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local web UI.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIBaseURL is the lesson backend, e.g. "https://api.example.com/v1".
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// RequestTimeout bounds every backend call ("15s").
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env" json:"token_env"`

	// Timezone is the IANA zone used for date keys and the week grid.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron drives the periodic refetch + reminder rebuild.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ReminderLead is how long before a lesson its reminder fires.
	ReminderLead Duration `yaml:"reminder_lead" json:"reminder_lead"`

	// ColumnHeight is the pixel height of one day column in the grid.
	ColumnHeight float64 `yaml:"column_height" json:"column_height"`

	// Listen is the HTTP listen address for the local web UI.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultWeekStart    = "monday"
	defaultRefreshCron  = "*/15 * * * *"
	defaultTokenEnv     = "TUTORCAL_TOKEN"
	defaultColumnHeight = 960
	defaultTimeout      = 15 * time.Second
	defaultReminderLead = time.Hour
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:     "http://127.0.0.1:3000",
		RequestTimeout: Duration(defaultTimeout),
		TokenEnv:       defaultTokenEnv,
		Timezone:       defaultTimezone,
		WeekStart:      defaultWeekStart,
		RefreshCron:    defaultRefreshCron,
		ReminderLead:   Duration(defaultReminderLead),
		ColumnHeight:   defaultColumnHeight,
		Listen:         defaultListen,
		LogLevel:       "info",
	}
}

// Normalize fills zero values with defaults so older or partial files keep
// working.
func (c *Config) Normalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = Duration(defaultTimeout)
	}
	if c.TokenEnv == "" {
		c.TokenEnv = defaultTokenEnv
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.ReminderLead <= 0 {
		c.ReminderLead = Duration(defaultReminderLead)
	}
	if c.ColumnHeight <= 0 {
		c.ColumnHeight = defaultColumnHeight
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// Load reads configuration from a YAML file. A missing file is created with
// defaults (0600) on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
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

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".tutorcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
