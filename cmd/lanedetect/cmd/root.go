// Package cmd implements the lanedetect command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/lanedetect/internal/config"
	"github.com/MeKo-Tech/lanedetect/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cliState is shared by the commands of one root command tree.
type cliState struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	st := &cliState{loader: config.NewLoaderWithViper(viper.New())}

	root := &cobra.Command{
		Use:   "lanedetect",
		Short: "Detect lane lines in road images",
		Long: `Detect the left and right lane boundaries of dash-cam frames.

Each frame is converted to grayscale, blurred, masked to a trapezoid in front
of the vehicle and run through Canny edge detection and a Hough line vote.
The voted lines are split by slope into left and right lanes and averaged.

Examples:
  lanedetect image road.png
  lanedetect image road.png --format json --overlay-dir out/
  lanedetect frame capture.bgr --width 640 --height 480
  lanedetect batch frames/ --recursive --db runs.db
  lanedetect serve --port 8080`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&st.cfgFile, "config", "",
		"config file (default is lanedetect.yaml in ., $XDG_CONFIG_HOME/lanedetect, ~/.config/lanedetect, ~, /etc/lanedetect)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().Bool("version", false, "print version information and exit")

	v := st.loader.GetViper()
	bindFlag(v, "verbose", pf.Lookup("verbose"))
	bindFlag(v, "log_level", pf.Lookup("log-level"))

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := st.load()
		if err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), cfg)
		return nil
	}

	root.AddCommand(
		newImageCommand(st),
		newFrameCommand(st),
		newBatchCommand(st),
		newServeCommand(st),
		newConfigCommand(st),
		newRunsCommand(st),
	)
	return root
}

// GetRootCommand returns a new root command for tests that execute the CLI in process.
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// Execute runs the CLI and exits non-zero on failure. SIGINT and SIGTERM
// cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func (st *cliState) load() (*config.Config, error) {
	if st.cfg != nil {
		return st.cfg, nil
	}
	cfg, err := st.loader.LoadWithFile(st.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	st.cfg = cfg
	return cfg, nil
}

// config returns a copy of the loaded configuration for a command to modify.
func (st *cliState) config() (*config.Config, error) {
	cfg, err := st.load()
	if err != nil {
		return nil, err
	}
	c := *cfg
	return &c, nil
}

func setupLogging(w io.Writer, cfg *config.Config) {
	var level slog.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
