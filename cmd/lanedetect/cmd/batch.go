package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/lanedetect/internal/batch"
	"github.com/MeKo-Tech/lanedetect/internal/config"
	"github.com/spf13/cobra"
)

func newBatchCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [paths...]",
		Short: "Detect lanes in many images in parallel",
		Long: `Detect lane lines in files and directories of images using a pool of workers.
Files that cannot be read or processed are reported and skipped.

Examples:
  lanedetect batch frames/
  lanedetect batch frames/ --recursive --workers 8 --format csv --output lanes.csv
  lanedetect batch a.png b.png --db runs.db --stats`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, st, args)
		},
	}
	addOutputFlags(cmd)
	addDetectorFlags(cmd)
	f := cmd.Flags()
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.StringSlice("include", nil, "only process files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.IntP("workers", "w", 0, "number of parallel workers (0 = number of CPUs)")
	f.String("db", "", "record the run in this SQLite database")
	f.Bool("progress", true, "show a progress bar")
	f.BoolP("quiet", "q", false, "suppress progress and status output")
	f.Bool("stats", false, "print processing statistics")
	return cmd
}

// configToBatchConfig maps configuration and changed flags onto a batch.Config.
func configToBatchConfig(cmd *cobra.Command, cfg *config.Config) (*batch.Config, error) {
	if _, err := applyOutputFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := applyDetectorFlags(cmd, cfg); err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("workers") {
		cfg.Pipeline.MaxWorkers, _ = f.GetInt("workers")
		if cfg.Pipeline.MaxWorkers < 0 {
			return nil, fmt.Errorf("invalid worker count: %d", cfg.Pipeline.MaxWorkers)
		}
	}
	if f.Changed("recursive") {
		cfg.Batch.Recursive, _ = f.GetBool("recursive")
	}
	if f.Changed("include") {
		cfg.Batch.Include, _ = f.GetStringSlice("include")
	}
	if f.Changed("exclude") {
		cfg.Batch.Exclude, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("progress") {
		cfg.Batch.ShowProgress, _ = f.GetBool("progress")
	}
	if f.Changed("db") {
		cfg.Store.Path, _ = f.GetString("db")
	}
	quiet, _ := f.GetBool("quiet")
	stats, _ := f.GetBool("stats")
	overlay, err := cfg.ToOverlayOptions()
	if err != nil {
		return nil, err
	}

	return &batch.Config{
		Pipeline:        cfg.ToPipelineConfig(),
		Format:          cfg.Output.Format,
		OutputFile:      cfg.Output.File,
		OverlayDir:      cfg.Output.OverlayDir,
		Overlay:         overlay,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
		DBPath:          cfg.Store.Path,
		ShowProgress:    cfg.Batch.ShowProgress,
		Quiet:           quiet,
		ShowStats:       stats,
		Stdout:          cmd.OutOrStdout(),
	}, nil
}

func runBatch(cmd *cobra.Command, st *cliState, args []string) error {
	cfg, err := st.config()
	if err != nil {
		return err
	}
	bc, err := configToBatchConfig(cmd, cfg)
	if err != nil {
		return err
	}

	res, err := batch.ProcessBatch(commandContext(cmd), args, bc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := res.SaveResults(out, bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if bc.ShowStats {
		res.PrintStats(out)
	}
	if len(res.Succeeded()) == 0 {
		return fmt.Errorf("all %d images failed", len(res.ImagePaths))
	}
	return nil
}
