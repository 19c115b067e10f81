package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolate points every search path at empty temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	require.NotNil(t, l)
	assert.Same(t, viper.GetViper(), l.GetViper())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func assertDefaults(t *testing.T, cfg *Config) {
	t.Helper()
	def := DefaultConfig()
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.Detector, cfg.Detector)
	assert.Equal(t, def.Pipeline, cfg.Pipeline)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, def.Batch.ShowProgress, cfg.Batch.ShowProgress)
	assert.Empty(t, cfg.Batch.Include)
	assert.Empty(t, cfg.Store.Path)
}

func TestLoad_FileInWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "lanedetect.yaml"), `
log_level: debug
detector:
  blur_sigma: 1.5
  hough:
    threshold: 80
  single_side_policy: drop
server:
  port: 9090
batch:
  include: ["*.png", "*.jpg"]
`)
	l := NewLoaderWithViper(viper.New())
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 1.5, cfg.Detector.BlurSigma, 1e-12)
	assert.Equal(t, 80, cfg.Detector.Hough.Threshold)
	assert.Equal(t, lanes.SingleSideDrop, cfg.Detector.SingleSidePolicy)
	assert.InDelta(t, 150.0, cfg.Detector.Canny.High, 1e-12, "unset keys keep defaults")
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"*.png", "*.jpg"}, cfg.Batch.Include)
	assert.Equal(t, "lanedetect.yaml", filepath.Base(l.GetConfigFileUsed()))
}

func TestLoad_XDGDirectory(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "xdg", "lanedetect", "lanedetect.yaml"), "server:\n  port: 7070\n")
	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("LANEDETECT_DETECTOR_HOUGH_THRESHOLD", "60")
	t.Setenv("LANEDETECT_DETECTOR_MIN_ABS_SLOPE", "0.5")
	t.Setenv("LANEDETECT_SERVER_RATE_LIMIT_ENABLED", "true")
	t.Setenv("LANEDETECT_STORE_PATH", "/tmp/runs.db")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Detector.Hough.Threshold)
	assert.InDelta(t, 0.5, cfg.Detector.MinAbsSlope, 1e-12)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "lanedetect.yaml"), "output:\n  format: xml\n")

	_, err := NewLoaderWithViper(viper.New()).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithoutValidation()
	require.NoError(t, err)
	assert.Equal(t, "xml", cfg.Output.Format)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "lanedetect.yaml"), "detector: [unclosed\n")
	_, err := NewLoaderWithViper(viper.New()).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadWithFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, filepath.Join(dir, "custom.yml"), "pipeline:\n  resize_width: 320\n  resize_height: 240\n")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Pipeline.ResizeWidth)
	assert.Equal(t, 240, cfg.Pipeline.ResizeHeight)

	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	cfg, err = NewLoaderWithViper(viper.New()).LoadWithFile("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Pipeline.ResizeWidth)
}

func TestGenerateDefaultConfigFile_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))
	require.Error(t, GenerateDefaultConfigFile(path), "existing files are kept")

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "detector")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, DefaultConfig()))
	assert.Contains(t, buf.String(), "single_side_policy: keep")
	assert.Contains(t, buf.String(), "threshold: 100")
}

func TestGetConfigSearchPaths(t *testing.T) {
	dir := isolate(t)
	paths := GetConfigSearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(dir, "xdg", "lanedetect"))
	assert.Equal(t, "/etc/lanedetect", paths[len(paths)-1])
}
