package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/config"
	"github.com/MeKo-Tech/lanedetect/internal/server"
	"github.com/MeKo-Tech/lanedetect/internal/store"
	"github.com/MeKo-Tech/lanedetect/internal/version"
	"github.com/spf13/cobra"
)

func newServeCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the lane detection API",
		Long: `Start an HTTP server that exposes lane detection.

The server provides the following endpoints:
  POST   /lanes/image              - Detect lanes in an uploaded image
  POST   /lanes/frame?width=&height= - Detect lanes in a raw BGR frame
  GET    /ws/lanes                 - WebSocket for streaming frames
  GET    /health                   - Health check endpoint
  GET    /config                   - Active detector parameters
  GET    /metrics                  - Prometheus metrics
  GET    /runs, /runs/{id}         - Recorded batch runs (with --db)

Examples:
  lanedetect serve
  lanedetect serve --port 8080
  lanedetect serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, st)
		},
	}
	addDetectorFlags(cmd)
	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-size", 50, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("overlay-enable", true, "enable overlay image responses")
	f.String("overlay-color", "#00FF00", "overlay lane color (hex)")
	f.String("db", "", "serve recorded runs from this SQLite database")
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 120, "maximum requests per minute per client")
	f.Int("requests-per-hour", 3000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 20000, "maximum requests per day per client")
	f.Int64("max-data-per-day", 2048, "maximum data processed per day per client (MB)")
	return cmd
}

// applyServeFlags copies changed server flags into cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	s := &cfg.Server
	if f.Changed("host") {
		s.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		s.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		s.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		s.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		s.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("overlay-enable") {
		s.OverlayEnabled, _ = f.GetBool("overlay-enable")
	}
	if f.Changed("overlay-color") {
		cfg.Output.OverlayColor, _ = f.GetString("overlay-color")
	}
	if f.Changed("db") {
		cfg.Store.Path, _ = f.GetString("db")
	}
	if f.Changed("rate-limit-enabled") {
		s.RateLimit.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDayMB, _ = f.GetInt64("max-data-per-day")
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return cfg.Output.Validate()
}

// serverConfig maps configuration onto the server package.
func serverConfig(cfg *config.Config, runs *store.Store) (server.Config, error) {
	overlay, err := cfg.ToOverlayOptions()
	if err != nil {
		return server.Config{}, err
	}
	sc := server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		Pipeline:       cfg.ToPipelineConfig(),
		OverlayEnabled: cfg.Server.OverlayEnabled,
		Overlay:        overlay,
		Runs:           runs,
		Version:        version.Version,
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		sc.RateLimiter = server.NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour,
			rl.MaxRequestsPerDay, rl.MaxDataPerDayMB*1024*1024)
	}
	return sc, nil
}

func runServe(cmd *cobra.Command, st *cliState) error {
	cfg, err := st.config()
	if err != nil {
		return err
	}
	if err := applyDetectorFlags(cmd, cfg); err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	var runs *store.Store
	if cfg.Store.Path != "" {
		if runs, err = store.Open(cfg.Store.Path); err != nil {
			return fmt.Errorf("failed to open run database: %w", err)
		}
		defer func() { _ = runs.Close() }()
	}

	sc, err := serverConfig(cfg, runs)
	if err != nil {
		return err
	}
	laneServer, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	laneServer.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	go func() {
		slog.Info("Starting lane detection server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := laneServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
