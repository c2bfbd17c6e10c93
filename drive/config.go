// Package drive exposes the pilote tool surface over MCP: session lifecycle,
// navigation and input actions, observation reports, report filtering, and
// the tool-call journal.
package drive

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pilote/observe"
)

// Config is the top-level pilote configuration.
type Config struct {
	// Listen is the HTTP listen address. Empty = stdio transport only.
	Listen string `yaml:"listen"`

	// AuthTokenHash is the bcrypt hash of the HTTP bearer token.
	// Empty disables auth on the HTTP transport.
	AuthTokenHash string `yaml:"auth_token_hash"`

	// DataDir holds the journal database. Empty disables the journal.
	DataDir string `yaml:"data_dir"`

	MaxSessions int `yaml:"max_sessions"`

	Browser BrowserConfig `yaml:"browser"`
	Observe ObserveConfig `yaml:"observe"`
	Filter  FilterConfig  `yaml:"filter"`
	Journal JournalConfig `yaml:"journal"`
	Rate    RateConfig    `yaml:"rate"`
}

// BrowserConfig controls the Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headless         *bool         `yaml:"headless"`
	Stealth          bool          `yaml:"stealth"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// ObserveConfig sets the initial observation mode and per-session bounds.
type ObserveConfig struct {
	Differential *bool         `yaml:"differential"`
	Granularity  string        `yaml:"granularity"` // tree | raw | both
	MaxNodes     int           `yaml:"max_nodes"`
	MaxRawBytes  int           `yaml:"max_raw_bytes"`
	Deadline     time.Duration `yaml:"deadline"`
}

// FilterConfig controls the external line matcher for report filtering.
type FilterConfig struct {
	// Binary pins the matcher binary; empty probes PATH for rg then grep.
	Binary     string `yaml:"binary"`
	MaxMatches int    `yaml:"max_matches"`
}

// JournalConfig controls tool-call journaling.
type JournalConfig struct {
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RateConfig is the per-IP rate limit for the HTTP transport.
type RateConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 8
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Observe.Differential == nil {
		t := true
		c.Observe.Differential = &t
	}
	if !observe.ValidGranularity(observe.Granularity(c.Observe.Granularity)) {
		c.Observe.Granularity = string(observe.GranularityTree)
	}
	if c.Observe.MaxNodes <= 0 {
		c.Observe.MaxNodes = observe.DefaultMaxNodes
	}
	if c.Observe.MaxRawBytes <= 0 {
		c.Observe.MaxRawBytes = observe.DefaultMaxRawBytes
	}
	if c.Observe.Deadline <= 0 {
		c.Observe.Deadline = observe.DefaultDeadline
	}
	if c.Filter.MaxMatches <= 0 {
		c.Filter.MaxMatches = 500
	}
	if c.Journal.Retention <= 0 {
		c.Journal.Retention = 7 * 24 * time.Hour
	}
	if c.Journal.SweepInterval <= 0 {
		c.Journal.SweepInterval = time.Hour
	}
	if c.Rate.Window <= 0 {
		c.Rate.Window = time.Minute
	}
}
