// Package config loads the pipeline configuration. Files are YAML or JSON
// (comments and trailing commas allowed); absent fields take the defaults
// through MergeDefaults, once, at startup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"demos-to-discord/host"
)

// DefaultFileName matches the name the host gives the plugin's config.
const DefaultFileName = "DemosToDiscord.json"

// ErrNoConfig is returned by Load when the file does not exist. The
// returned Config is still usable and holds the defaults.
var ErrNoConfig = errors.New("config file not found")

// Config is the effective configuration. It is read-only once built.
type Config struct {
	Webhook               string `yaml:"webhook" json:"webhook"`
	T5DemoPath            string `yaml:"t5_demo_path" json:"t5_demo_path"`
	T6DemoPath            string `yaml:"t6_demo_path" json:"t6_demo_path"`
	MaxLookbackMinutes    int    `yaml:"max_lookback_minutes" json:"max_lookback_minutes"`
	MaxWaitMinutes        int    `yaml:"max_wait_minutes" json:"max_wait_minutes"`
	RetryIntervalSeconds  int    `yaml:"retry_interval_seconds" json:"retry_interval_seconds"`
	PostMatchDelaySeconds int    `yaml:"post_match_delay_seconds" json:"post_match_delay_seconds"`
	Debug                 bool   `yaml:"debug" json:"debug"`
	// RenameOnUpload is accepted for compatibility and has no effect.
	RenameOnUpload bool   `yaml:"rename_on_upload" json:"rename_on_upload"`
	WebfrontURL    string `yaml:"webfront_url" json:"webfront_url"`
	DemoTimezone   string `yaml:"demo_timezone" json:"demo_timezone"`
	WatchDirectory bool   `yaml:"watch_directory" json:"watch_directory"`
	JournalPath    string `yaml:"journal_path" json:"journal_path"`
}

// Overrides is a config file as loaded: nil means the field was absent.
type Overrides struct {
	Webhook               *string `yaml:"webhook" json:"webhook"`
	T5DemoPath            *string `yaml:"t5_demo_path" json:"t5_demo_path"`
	T6DemoPath            *string `yaml:"t6_demo_path" json:"t6_demo_path"`
	MaxLookbackMinutes    *int    `yaml:"max_lookback_minutes" json:"max_lookback_minutes"`
	MaxWaitMinutes        *int    `yaml:"max_wait_minutes" json:"max_wait_minutes"`
	RetryIntervalSeconds  *int    `yaml:"retry_interval_seconds" json:"retry_interval_seconds"`
	PostMatchDelaySeconds *int    `yaml:"post_match_delay_seconds" json:"post_match_delay_seconds"`
	Debug                 *bool   `yaml:"debug" json:"debug"`
	RenameOnUpload        *bool   `yaml:"rename_on_upload" json:"rename_on_upload"`
	WebfrontURL           *string `yaml:"webfront_url" json:"webfront_url"`
	DemoTimezone          *string `yaml:"demo_timezone" json:"demo_timezone"`
	WatchDirectory        *bool   `yaml:"watch_directory" json:"watch_directory"`
	JournalPath           *string `yaml:"journal_path" json:"journal_path"`
}

func Default() Config {
	return Config{
		T5DemoPath:            `C:\Users\Administrator\AppData\Local\Plutonium\storage\t5\demos`,
		T6DemoPath:            `C:\Users\Administrator\AppData\Local\Plutonium\storage\t6\demos`,
		MaxLookbackMinutes:    90,
		MaxWaitMinutes:        30,
		RetryIntervalSeconds:  20,
		PostMatchDelaySeconds: 10,
		RenameOnUpload:        true,
		DemoTimezone:          "UTC",
	}
}

// MergeDefaults fills every absent field of loaded from defaults. Durations
// that are zero or negative are treated as absent; the post-match delay may
// be zero.
func MergeDefaults(loaded Overrides, defaults Config) Config {
	cfg := defaults

	str := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	positive := func(dst *int, v *int) {
		if v != nil && *v > 0 {
			*dst = *v
		}
	}
	flag := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}

	str(&cfg.Webhook, loaded.Webhook)
	str(&cfg.WebfrontURL, loaded.WebfrontURL)
	str(&cfg.JournalPath, loaded.JournalPath)
	if loaded.T5DemoPath != nil && strings.TrimSpace(*loaded.T5DemoPath) != "" {
		cfg.T5DemoPath = strings.TrimSpace(*loaded.T5DemoPath)
	}
	if loaded.T6DemoPath != nil && strings.TrimSpace(*loaded.T6DemoPath) != "" {
		cfg.T6DemoPath = strings.TrimSpace(*loaded.T6DemoPath)
	}
	if loaded.DemoTimezone != nil && strings.TrimSpace(*loaded.DemoTimezone) != "" {
		cfg.DemoTimezone = strings.TrimSpace(*loaded.DemoTimezone)
	}

	positive(&cfg.MaxLookbackMinutes, loaded.MaxLookbackMinutes)
	positive(&cfg.MaxWaitMinutes, loaded.MaxWaitMinutes)
	positive(&cfg.RetryIntervalSeconds, loaded.RetryIntervalSeconds)
	if loaded.PostMatchDelaySeconds != nil && *loaded.PostMatchDelaySeconds >= 0 {
		cfg.PostMatchDelaySeconds = *loaded.PostMatchDelaySeconds
	}

	flag(&cfg.Debug, loaded.Debug)
	flag(&cfg.RenameOnUpload, loaded.RenameOnUpload)
	flag(&cfg.WatchDirectory, loaded.WatchDirectory)
	return cfg
}

// Parse decodes data according to the extension of name.
func Parse(name string, data []byte) (Overrides, error) {
	var o Overrides
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &o); err != nil {
			return Overrides{}, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &o); err != nil {
			return Overrides{}, fmt.Errorf("parsing JSON: %w", err)
		}
	}
	return o, nil
}

// Load reads path and merges it over Default. A missing file yields the
// defaults together with an error wrapping ErrNoConfig.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), fmt.Errorf("%w: %s", ErrNoConfig, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	o, err := Parse(path, data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg := MergeDefaults(o, Default())
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes cfg in the format implied by the extension of name.
func Marshal(name string, cfg Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
}

// Validate rejects values that would make the pipeline misbehave. A missing
// webhook is allowed; it only disables outbound calls.
func (c Config) Validate() error {
	if c.Webhook != "" {
		u, err := url.Parse(c.Webhook)
		if err != nil {
			return fmt.Errorf("invalid webhook URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("webhook URL must include a host")
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// DemoPath returns the demo directory for a game family.
func (c Config) DemoPath(game host.GameFamily) (string, bool) {
	switch host.NormalizeGame(string(game)) {
	case host.GameT5:
		return c.T5DemoPath, true
	case host.GameT6:
		return c.T6DemoPath, true
	default:
		return "", false
	}
}

// Location is the zone demo filenames are written in.
func (c Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.DemoTimezone) {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DemoTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid demo_timezone %q: %w", c.DemoTimezone, err)
	}
	return loc, nil
}

func (c Config) Lookback() time.Duration {
	return time.Duration(c.MaxLookbackMinutes) * time.Minute
}

func (c Config) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMinutes) * time.Minute
}

func (c Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSeconds) * time.Second
}

func (c Config) PostMatchDelay() time.Duration {
	return time.Duration(c.PostMatchDelaySeconds) * time.Second
}
