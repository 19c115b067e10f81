package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
	"github.com/spf13/cobra"
)

func newImageCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image [files...]",
		Short: "Detect lanes in image files",
		Long: `Detect lane lines in one or more image files.

Supported formats: JPEG, PNG, BMP

Examples:
  lanedetect image road.png
  lanedetect image *.jpg --format csv --output lanes.csv
  lanedetect image road.png --overlay-dir out/ --draw-roi
  lanedetect image road.png --debug-dir debug/`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("no input files provided")
			}
			return runImage(cmd, st, args)
		},
	}
	addOutputFlags(cmd)
	addDetectorFlags(cmd)
	cmd.Flags().String("debug-dir", "", "write the gray, blur, mask and edges stages of each frame to this directory")
	return cmd
}

func runImage(cmd *cobra.Command, st *cliState, args []string) error {
	cfg, err := st.config()
	if err != nil {
		return err
	}
	if _, err := applyOutputFlags(cmd, cfg); err != nil {
		return err
	}
	if err := applyDetectorFlags(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("debug-dir") {
		cfg.Output.DebugDir, _ = cmd.Flags().GetString("debug-dir")
	}

	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build lane pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	ctx := commandContext(cmd)
	results := make([]*pipeline.FrameResult, 0, len(args))
	for _, path := range args {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		res, err := pl.ProcessImageContext(ctx, img)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", path, err)
		}
		res.Source = path
		results = append(results, res)
		slog.Debug("lanes detected", "file", path, "segments", len(res.Segments), "fallback", res.Fallback)

		if cfg.Output.OverlayDir != "" {
			out, err := writeOverlay(cfg, img, res, path)
			if err != nil {
				return fmt.Errorf("failed to write overlay for %s: %w", path, err)
			}
			slog.Info("overlay written", "file", out)
		}
		if cfg.Output.DebugDir != "" {
			if pl.ResizeEnabled() {
				if img, err = utils.ResizeExact(img, cfg.Pipeline.ResizeWidth, cfg.Pipeline.ResizeHeight); err != nil {
					return err
				}
			}
			data, w, h := utils.ImageToBGR(img)
			if err := writeDebugStages(cfg.Output.DebugDir, path, pl.Detector, lanes.NewFrame(data, w, h)); err != nil {
				return fmt.Errorf("failed to write debug stages for %s: %w", path, err)
			}
		}
	}

	return writeResults(cmd.OutOrStdout(), results, cfg.Output.Format, cfg.Output.File)
}
