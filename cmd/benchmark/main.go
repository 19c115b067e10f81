package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/MeKo-Tech/lanedetect/internal/benchmark"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
)

func main() {
	var (
		sizes      = flag.String("sizes", "320x240,640x480,1280x720", "Comma separated frame sizes (WxH)")
		iterations = flag.Int("iterations", 5, "Number of iterations per benchmark")
		frames     = flag.Int("frames", 16, "Frames per batch in the sequential vs parallel comparison")
		workers    = flag.Int("workers", 0, "Parallel workers (0 = number of CPUs)")
		outputFile = flag.String("output", "", "CSV file for the comparison results (optional)")
		stagesOnly = flag.Bool("stages-only", false, "Skip the sequential vs parallel comparison")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	list, err := benchmark.ParseSizes(*sizes)
	if err != nil {
		slog.Error("Invalid sizes", "error", err)
		os.Exit(1)
	}

	fmt.Println("lanedetect Stage Benchmark")
	fmt.Println("==========================")
	fmt.Printf("Running benchmarks with %d iterations per test...\n", *iterations)

	cfg := pipeline.DefaultConfig()
	suite, err := benchmark.StageSuite(cfg.Detector, list)
	if err != nil {
		slog.Error("Failed to prepare stage benchmarks", "error", err)
		os.Exit(1)
	}
	suite.RunAll(*iterations)
	suite.PrintResults(os.Stdout)

	if *stagesOnly {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmp := benchmark.NewSequentialVsParallel(cfg, *frames, *workers)
	results, err := cmp.Run(ctx, list, *iterations)
	if err != nil {
		slog.Error("Benchmark failed", "error", err)
		os.Exit(1) //nolint:gocritic // stop only releases the signal handler
	}
	cmp.PrintDetailedResults(os.Stdout)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			slog.Error("Failed to save results to file", "file", *outputFile, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Results saved to: %s\n", *outputFile)
	}
}

func saveResultsToFile(filename string, results []benchmark.ParallelResult) error {
	file, err := os.Create(filename) //nolint:gosec // path comes from the command line
	if err != nil {
		return err
	}
	if err := benchmark.WriteCSV(file, results); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
