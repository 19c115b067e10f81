package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/lanedetect/internal/config"
	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"

	// outputFormatMatrix is the packed little-endian float64 N×4 segment matrix.
	outputFormatMatrix = "matrix"
)

var validOutputFormats = []string{outputFormatText, outputFormatJSON, outputFormatCSV}

// addDetectorFlags registers the tuning flags shared by every detecting command.
func addDetectorFlags(cmd *cobra.Command) {
	d := lanes.DefaultConfig()
	f := cmd.Flags()
	f.Float64("blur-sigma", d.BlurSigma, "Gaussian blur sigma before edge detection")
	f.Float64("canny-low", d.Canny.Low, "Canny low hysteresis threshold")
	f.Float64("canny-high", d.Canny.High, "Canny high hysteresis threshold")
	f.Int("hough-threshold", d.Hough.Threshold, "minimum Hough votes for a line")
	f.Float64("min-slope", d.MinAbsSlope, "discard lines with |slope| below this value")
	f.String("single-side", string(d.SingleSidePolicy), "single side policy: keep or drop")
	f.String("resize", "", "resize frames to WxH before detection (e.g. 640x480)")
}

// applyDetectorFlags copies changed detector flags into cfg.
func applyDetectorFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("blur-sigma") {
		cfg.Detector.BlurSigma, _ = f.GetFloat64("blur-sigma")
	}
	if f.Changed("canny-low") {
		cfg.Detector.Canny.Low, _ = f.GetFloat64("canny-low")
	}
	if f.Changed("canny-high") {
		cfg.Detector.Canny.High, _ = f.GetFloat64("canny-high")
	}
	if f.Changed("hough-threshold") {
		cfg.Detector.Hough.Threshold, _ = f.GetInt("hough-threshold")
	}
	if f.Changed("min-slope") {
		cfg.Detector.MinAbsSlope, _ = f.GetFloat64("min-slope")
	}
	if f.Changed("single-side") {
		p, _ := f.GetString("single-side")
		cfg.Detector.SingleSidePolicy = lanes.SingleSidePolicy(p)
	}
	if f.Changed("resize") {
		s, _ := f.GetString("resize")
		w, h, err := utils.ParseSize(s)
		if err != nil {
			return fmt.Errorf("invalid --resize: %w", err)
		}
		cfg.Pipeline.ResizeWidth, cfg.Pipeline.ResizeHeight = w, h
	}
	if err := cfg.Detector.Validate(); err != nil {
		return fmt.Errorf("invalid detector settings: %w", err)
	}
	return cfg.Pipeline.Validate()
}

// addOutputFlags registers result and overlay flags.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", outputFormatText, "output format: text, json or csv")
	f.StringP("output", "o", "", "write results to this file instead of stdout")
	f.String("overlay-dir", "", "write PNG overlays of the detected lanes to this directory")
	f.String("overlay-color", "#00FF00", "overlay lane color (hex)")
	f.Int("overlay-thickness", 10, "overlay lane thickness in pixels")
	f.Bool("draw-roi", false, "outline the region of interest in overlays")
}

// applyOutputFlags copies changed output flags into cfg and validates them.
// It returns the selected format. A format listed in extra is accepted as is
// and leaves cfg.Output.Format untouched.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config, extra ...string) (string, error) {
	f := cmd.Flags()
	format := cfg.Output.Format
	if f.Changed("format") {
		v, _ := f.GetString("format")
		format = strings.ToLower(v)
	}
	if f.Changed("output") {
		cfg.Output.File, _ = f.GetString("output")
	}
	if f.Changed("overlay-dir") {
		cfg.Output.OverlayDir, _ = f.GetString("overlay-dir")
	}
	if f.Changed("overlay-color") {
		cfg.Output.OverlayColor, _ = f.GetString("overlay-color")
	}
	if f.Changed("overlay-thickness") {
		cfg.Output.OverlayThickness, _ = f.GetInt("overlay-thickness")
	}
	if f.Changed("draw-roi") {
		cfg.Output.DrawROI, _ = f.GetBool("draw-roi")
	}
	if !slices.Contains(extra, format) {
		if !slices.Contains(validOutputFormats, format) {
			return "", fmt.Errorf("invalid output format: %s (must be one of: %s)",
				format, strings.Join(append(slices.Clone(validOutputFormats), extra...), ", "))
		}
		cfg.Output.Format = format
	}
	return format, cfg.Output.Validate()
}
