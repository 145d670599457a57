// Package config defines the Config record the core consumes (spec.md §3,
// "Configuration (recognized options, enumerated)"). Loading it from a
// file/CLI is an ambient concern the core merely benefits from; the field
// tags follow the teacher's fs/config/configstruct convention (struct tag
// "config:\"name\"" resolving named options against a mapper).
package config

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	yaml "gopkg.in/yaml.v3"
)

// KeyBindings maps a named action to the set of keys that trigger it.
type KeyBindings map[string][]string

// Favorite is one entry of the favorite_paths list.
type Favorite struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// ColorScheme selects the base palette; force_fallback_colors can still
// override it at runtime when the terminal can't support it.
type ColorScheme string

const (
	ColorSchemeDark  ColorScheme = "dark"
	ColorSchemeLight ColorScheme = "light"
)

// Config is the full set of recognized options from spec.md §3.
type Config struct {
	S3CacheTTLSeconds                 uint32      `yaml:"s3_cache_ttl_seconds" config:"s3_cache_ttl_seconds"`
	ControlMasterCheckIntervalSeconds uint32      `yaml:"control_master_check_interval_seconds" config:"control_master_check_interval_seconds"`
	HealthCheckIntervalSeconds        uint32      `yaml:"health_check_interval_seconds" config:"health_check_interval_seconds"`
	KeyBindings                      KeyBindings `yaml:"key_bindings" config:"key_bindings"`
	FavoritePaths                    []Favorite  `yaml:"favorite_paths" config:"favorite_paths"`
	ConfirmDelete                    bool        `yaml:"confirm_delete" config:"confirm_delete"`
	ConfirmMove                      bool        `yaml:"confirm_move" config:"confirm_move"`
	ConfirmCopy                      bool        `yaml:"confirm_copy" config:"confirm_copy"`
	ColorScheme                      ColorScheme `yaml:"color_scheme" config:"color_scheme"`
	ForceFallbackColors              bool        `yaml:"force_fallback_colors" config:"force_fallback_colors"`
	CacheMaxEntries                  uint32      `yaml:"cache_max_entries" config:"cache_max_entries"`
	CursorHistoryDepth               uint32      `yaml:"cursor_history_depth" config:"cursor_history_depth"`
	ProgressRedrawMinIntervalMs      uint32      `yaml:"progress_redraw_min_interval_ms" config:"progress_redraw_min_interval_ms"`
}

// Default returns the Config populated with the defaults named in spec.md §3.
func Default() *Config {
	return &Config{
		S3CacheTTLSeconds:                 60,
		ControlMasterCheckIntervalSeconds: 5,
		HealthCheckIntervalSeconds:        30,
		KeyBindings:                       KeyBindings{},
		FavoritePaths:                     nil,
		ConfirmDelete:                     true,
		ConfirmMove:                       true,
		ConfirmCopy:                       false,
		ColorScheme:                       ColorSchemeDark,
		ForceFallbackColors:               false,
		CacheMaxEntries:                   0, // not read by the metadata cache, whose entry count is unbounded
		CursorHistoryDepth:                100,
		ProgressRedrawMinIntervalMs:       16,
	}
}

// Validate enforces the invariants implied by spec.md §3 and returns a
// plain error describing the first violation; it is not an errs.Error
// (this package does not import internal/errs).
func (c *Config) Validate() error {
	if c.ProgressRedrawMinIntervalMs < 16 {
		return fmt.Errorf("progress_redraw_min_interval_ms must be >= 16, got %d", c.ProgressRedrawMinIntervalMs)
	}
	if c.CursorHistoryDepth == 0 {
		return fmt.Errorf("cursor_history_depth must be > 0")
	}
	if c.ColorScheme != ColorSchemeDark && c.ColorScheme != ColorSchemeLight {
		return fmt.Errorf("color_scheme must be %q or %q, got %q", ColorSchemeDark, ColorSchemeLight, c.ColorScheme)
	}
	return nil
}

// CacheTTL returns S3CacheTTLSeconds as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.S3CacheTTLSeconds) * time.Second
}

// Load reads a YAML config file, expanding a leading ~ with go-homedir
// (matching the teacher's direct dependency), and merges it over Default().
// Unknown fields are ignored for forward compatibility.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
