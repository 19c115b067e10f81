package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name of configuration files, without extension.
	ConfigFileName = "lanedetect"

	// EnvPrefix prefixes environment variables, e.g. LANEDETECT_DETECTOR_BLUR_SIGMA.
	EnvPrefix = "LANEDETECT"
)

// Loader resolves configuration from defaults, a config file, the environment and bound flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader uses the global viper instance so flags bound by the CLI take part.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper uses v instead of the global instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard locations for lanedetect.yaml and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile reads configFile explicitly. An empty path falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}
	l.v.SetConfigFile(configFile)
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) prepare() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	l.setDefaults()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()
	set := l.v.SetDefault

	set("log_level", d.LogLevel)
	set("verbose", d.Verbose)

	set("detector.blur_sigma", d.Detector.BlurSigma)
	set("detector.roi.bottom_y", d.Detector.ROI.BottomY)
	set("detector.roi.top_y", d.Detector.ROI.TopY)
	set("detector.roi.top_left_x", d.Detector.ROI.TopLeftX)
	set("detector.roi.top_right_x", d.Detector.ROI.TopRightX)
	set("detector.canny.low", d.Detector.Canny.Low)
	set("detector.canny.high", d.Detector.Canny.High)
	set("detector.canny.blur_sigma", d.Detector.Canny.BlurSigma)
	set("detector.hough.rho_step", d.Detector.Hough.RhoStep)
	set("detector.hough.theta_step_deg", d.Detector.Hough.ThetaStepDeg)
	set("detector.hough.threshold", d.Detector.Hough.Threshold)
	set("detector.hough.suppression_radius", d.Detector.Hough.SuppressionRadius)
	set("detector.min_abs_slope", d.Detector.MinAbsSlope)
	set("detector.single_side_policy", string(d.Detector.SingleSidePolicy))

	set("pipeline.resize_width", d.Pipeline.ResizeWidth)
	set("pipeline.resize_height", d.Pipeline.ResizeHeight)
	set("pipeline.max_workers", d.Pipeline.MaxWorkers)

	set("output.format", d.Output.Format)
	set("output.file", d.Output.File)
	set("output.overlay_dir", d.Output.OverlayDir)
	set("output.overlay_color", d.Output.OverlayColor)
	set("output.overlay_thickness", d.Output.OverlayThickness)
	set("output.draw_roi", d.Output.DrawROI)
	set("output.debug_dir", d.Output.DebugDir)

	set("server.host", d.Server.Host)
	set("server.port", d.Server.Port)
	set("server.cors_origin", d.Server.CORSOrigin)
	set("server.max_upload_mb", d.Server.MaxUploadMB)
	set("server.timeout_sec", d.Server.TimeoutSec)
	set("server.shutdown_timeout", d.Server.ShutdownTimeout)
	set("server.overlay_enabled", d.Server.OverlayEnabled)
	set("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	set("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	set("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	set("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	set("server.rate_limit.max_data_per_day_mb", d.Server.RateLimit.MaxDataPerDayMB)

	set("batch.recursive", d.Batch.Recursive)
	set("batch.include", d.Batch.Include)
	set("batch.exclude", d.Batch.Exclude)
	set("batch.show_progress", d.Batch.ShowProgress)

	set("store.path", d.Store.Path)
}

// GetConfigFileUsed returns the config file that was read, if any.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper exposes the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// WriteYAML writes cfg as YAML to w.
func WriteYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the defaults to filename (lanedetect.yaml when empty).
// Existing files are not overwritten.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path comes from the CLI
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	if err := WriteYAML(f, DefaultConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GetConfigSearchPaths returns the directories searched for lanedetect.yaml, in order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName), home)
	}
	return append(paths, "/etc/"+ConfigFileName)
}
