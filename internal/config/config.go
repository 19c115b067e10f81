// Package config loads lanedetect settings from files, environment and flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
)

// Config is the complete application configuration shared by every command.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector lanes.Config   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
}

// PipelineConfig covers image preparation and parallelism.
type PipelineConfig struct {
	ResizeWidth  int `mapstructure:"resize_width" yaml:"resize_width" json:"resize_width"`
	ResizeHeight int `mapstructure:"resize_height" yaml:"resize_height" json:"resize_height"`
	MaxWorkers   int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// OutputConfig controls result formatting and overlays.
type OutputConfig struct {
	Format           string `mapstructure:"format" yaml:"format" json:"format"`
	File             string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir       string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor     string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	OverlayThickness int    `mapstructure:"overlay_thickness" yaml:"overlay_thickness" json:"overlay_thickness"`
	DrawROI          bool   `mapstructure:"draw_roi" yaml:"draw_roi" json:"draw_roi"`
	DebugDir         string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig sets per client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Recursive    bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include      []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude      []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ShowProgress bool     `mapstructure:"show_progress" yaml:"show_progress" json:"show_progress"`
}

// StoreConfig points at the run history database. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

const infoLevel = "info"

var (
	validLogLevels = []string{"debug", infoLevel, "warn", "error"}
	validFormats   = []string{"text", "json", "csv"}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: infoLevel,
		Detector: lanes.DefaultConfig(),
		Pipeline: PipelineConfig{MaxWorkers: runtime.NumCPU()},
		Output: OutputConfig{
			Format:           "text",
			OverlayColor:     "#00FF00",
			OverlayThickness: 10,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 120,
				RequestsPerHour:   3000,
				MaxRequestsPerDay: 20000,
				MaxDataPerDayMB:   2048,
			},
		},
		Batch: BatchConfig{ShowProgress: true},
	}
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log_level %q (want one of %v)", c.LogLevel, validLogLevels))
	}
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if err := c.Output.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks resize and worker settings.
func (p PipelineConfig) Validate() error {
	if p.ResizeWidth < 0 || p.ResizeHeight < 0 {
		return fmt.Errorf("resize must be non-negative, got %dx%d", p.ResizeWidth, p.ResizeHeight)
	}
	if (p.ResizeWidth == 0) != (p.ResizeHeight == 0) {
		return fmt.Errorf("resize needs both width and height, got %dx%d", p.ResizeWidth, p.ResizeHeight)
	}
	if p.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be >= 0, got %d", p.MaxWorkers)
	}
	return nil
}

// Validate checks format and overlay settings.
func (o OutputConfig) Validate() error {
	if !slices.Contains(validFormats, o.Format) {
		return fmt.Errorf("invalid format %q (want one of %v)", o.Format, validFormats)
	}
	if _, err := utils.ParseHexColor(o.OverlayColor); err != nil {
		return fmt.Errorf("overlay_color: %w", err)
	}
	if o.OverlayThickness < 1 {
		return fmt.Errorf("overlay_thickness must be >= 1, got %d", o.OverlayThickness)
	}
	return nil
}

// Validate checks the listener and limits.
func (s ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be >= 1, got %d", s.MaxUploadMB)
	}
	if s.TimeoutSec < 1 {
		return fmt.Errorf("timeout_sec must be >= 1, got %d", s.TimeoutSec)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be >= 0, got %d", s.ShutdownTimeout)
	}
	r := s.RateLimit
	if r.RequestsPerMinute < 0 || r.RequestsPerHour < 0 || r.MaxRequestsPerDay < 0 || r.MaxDataPerDayMB < 0 {
		return errors.New("rate_limit values must be >= 0")
	}
	return nil
}

// ToPipelineConfig converts the loaded settings into a pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Detector = c.Detector
	pc.ResizeWidth = c.Pipeline.ResizeWidth
	pc.ResizeHeight = c.Pipeline.ResizeHeight
	pc.Parallel.MaxWorkers = c.Pipeline.MaxWorkers
	return pc
}

// ToOverlayOptions converts output settings into overlay drawing options.
func (c *Config) ToOverlayOptions() (pipeline.OverlayOptions, error) {
	opts := pipeline.DefaultOverlayOptions()
	col, err := utils.ParseHexColor(c.Output.OverlayColor)
	if err != nil {
		return opts, err
	}
	opts.Color = col
	if c.Output.OverlayThickness > 0 {
		opts.Thickness = c.Output.OverlayThickness
	}
	opts.DrawROI = c.Output.DrawROI
	return opts, nil
}
