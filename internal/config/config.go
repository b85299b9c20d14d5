// ============================================================================
// rowplan Config - YAML configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Function: Loads the session configuration from a YAML file, fills in
//           defaults for everything left out and validates the result.
//
// File layout (configs/default.yaml):
//
//   service:     base_url, timeout
//   surface:     width, height, padding, marker_radius
//   constraints: hole_to_hole_min/max, row_to_row_min/max (form defaults)
//   artifacts:   dir, svg, png, format (csv | xlsx), backup
//   metrics:     enabled, port
//   tracing:     endpoint, insecure, sampling_ratio
//   log:         level (debug | info | warn | error)
//
// Missing default file:
//   Load("configs/default.yaml") falls back to built-in defaults when that
//   file does not exist. Any other path must exist.
//
// ============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/internal/render"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "configs/default.yaml"

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var ErrInvalid = errors.New("invalid config")

// Config is the complete rowplan configuration.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Surface     SurfaceConfig     `yaml:"surface"`
	Constraints ConstraintsConfig `yaml:"constraints"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Log         LogConfig         `yaml:"log"`
}

type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SurfaceConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	Padding      float64 `yaml:"padding"`
	MarkerRadius float64 `yaml:"marker_radius"`
}

type ConstraintsConfig struct {
	HoleToHoleMin float64 `yaml:"hole_to_hole_min"`
	HoleToHoleMax float64 `yaml:"hole_to_hole_max"`
	RowToRowMin   float64 `yaml:"row_to_row_min"`
	RowToRowMax   float64 `yaml:"row_to_row_max"`
}

type ArtifactsConfig struct {
	Dir    string `yaml:"dir"`
	SVG    bool   `yaml:"svg"`
	PNG    bool   `yaml:"png"`
	Format string `yaml:"format"`
	Backup bool   `yaml:"backup"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TracingConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Surface: SurfaceConfig{
			Width:        geometry.DefaultWidth,
			Height:       geometry.DefaultHeight,
			Padding:      geometry.DefaultPadding,
			MarkerRadius: render.DefaultMarkerRadius,
		},
		Constraints: ConstraintsConfig{
			HoleToHoleMin: 17,
			HoleToHoleMax: 42,
			RowToRowMin:   42,
			RowToRowMax:   100,
		},
		Artifacts: ArtifactsConfig{
			Dir:    "out",
			SVG:    true,
			Format: FormatCSV,
		},
		Metrics: MetricsConfig{Port: 9090},
		Tracing: TracingConfig{Insecure: true, SamplingRatio: 1},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults. Only DefaultPath may be
// missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string

	if c.Service.BaseURL == "" {
		problems = append(problems, "service.base_url is empty")
	}
	if c.Service.Timeout <= 0 {
		problems = append(problems, "service.timeout must be positive")
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		problems = append(problems, "surface width and height must be positive")
	}
	if c.Surface.Padding < 0 || 2*c.Surface.Padding >= c.Surface.Width || 2*c.Surface.Padding >= c.Surface.Height {
		problems = append(problems, "surface.padding leaves no drawing area")
	}
	if c.Surface.MarkerRadius <= 0 {
		problems = append(problems, "surface.marker_radius must be positive")
	}
	if c.Constraints.HoleToHoleMin > c.Constraints.HoleToHoleMax {
		problems = append(problems, "constraints.hole_to_hole_min exceeds max")
	}
	if c.Constraints.RowToRowMin > c.Constraints.RowToRowMax {
		problems = append(problems, "constraints.row_to_row_min exceeds max")
	}
	if c.Artifacts.Format != FormatCSV && c.Artifacts.Format != FormatXLSX {
		problems = append(problems, fmt.Sprintf("artifacts.format %q is not csv or xlsx", c.Artifacts.Format))
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		problems = append(problems, "metrics.port out of range")
	}
	if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
		problems = append(problems, "tracing.sampling_ratio must be within [0,1]")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// SurfaceGeometry returns the configured drawing surface.
func (c *Config) SurfaceGeometry() geometry.Surface {
	return geometry.Surface{
		Width:   c.Surface.Width,
		Height:  c.Surface.Height,
		Padding: c.Surface.Padding,
	}
}

// ConstraintValues returns the constraint form defaults.
func (c *Config) ConstraintValues() types.Constraints {
	return types.Constraints{
		HoleToHoleMin: c.Constraints.HoleToHoleMin,
		HoleToHoleMax: c.Constraints.HoleToHoleMax,
		RowToRowMin:   c.Constraints.RowToRowMin,
		RowToRowMax:   c.Constraints.RowToRowMax,
	}
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not debug, info, warn or error", s)
	}
	return level, nil
}
