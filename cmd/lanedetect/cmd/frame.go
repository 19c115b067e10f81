package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
	"github.com/spf13/cobra"
)

func newFrameCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame <file>",
		Short: "Detect lanes in a raw BGR frame",
		Long: `Detect lane lines in a raw frame of interleaved blue, green and red bytes,
stored row by row without padding. The frame size must be given explicitly.

Examples:
  lanedetect frame capture.bgr --width 640 --height 480
  lanedetect frame capture.bgr --width 1280 --height 720 --format json
  lanedetect frame capture.bgr --width 640 --height 480 --format matrix -o segments.f64`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrame(cmd, st, args[0])
		},
	}
	addOutputFlags(cmd)
	cmd.Flags().Lookup("format").Usage = "output format: text, json, csv or matrix (little-endian float64 N×4)"
	addDetectorFlags(cmd)
	cmd.Flags().Int("width", 0, "frame width in pixels")
	cmd.Flags().Int("height", 0, "frame height in pixels")
	return cmd
}

func runFrame(cmd *cobra.Command, st *cliState, path string) error {
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	if width <= 0 || height <= 0 {
		return errors.New("--width and --height are required and must be positive")
	}

	cfg, err := st.config()
	if err != nil {
		return err
	}
	format, err := applyOutputFlags(cmd, cfg, outputFormatMatrix)
	if err != nil {
		return err
	}
	if err := applyDetectorFlags(cmd, cfg); err != nil {
		return err
	}
	// raw frames are processed at their own size
	cfg.Pipeline.ResizeWidth, cfg.Pipeline.ResizeHeight = 0, 0

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the CLI
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}

	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build lane pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	res, err := pl.ProcessFrameContext(commandContext(cmd), lanes.NewFrame(data, width, height))
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", path, err)
	}
	res.Source = path

	if cfg.Output.OverlayDir != "" {
		img, err := utils.BGRToImage(data, width, height)
		if err != nil {
			return err
		}
		if _, err := writeOverlay(cfg, img, res, path); err != nil {
			return fmt.Errorf("failed to write overlay: %w", err)
		}
	}

	if format == outputFormatMatrix {
		return writeMatrix(cmd.OutOrStdout(), res, cfg.Output.File)
	}
	return writeResults(cmd.OutOrStdout(), []*pipeline.FrameResult{res}, cfg.Output.Format, cfg.Output.File)
}
