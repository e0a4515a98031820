package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/deskpulse"
	"github.com/loykin/deskpulse/internal/logger"
	"github.com/loykin/deskpulse/internal/vision"
)

func createRunCommand(global *GlobalFlags, flags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracker daemon",
		Long: `Run the tracker in the foreground: sensors, the inference loop and
the local HTTP API. Stop it with Ctrl-C or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Listen, "listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&flags.NoVision, "no-vision", false, "disable the camera entirely")
	cmd.Flags().BoolVar(&flags.SimulateVision, "simulate-vision", false, "use a synthetic presence source instead of the camera")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.Flags().StringVar(&flags.StatsPath, "stats-path", "", "SQLite file for daily stats (overrides config)")

	return cmd
}

func runDaemon(global *GlobalFlags, flags *RunFlags) error {
	cfg, err := deskpulse.LoadConfig(global.ConfigPath)
	if err != nil {
		return err
	}
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}
	if flags.NoVision {
		cfg.VisionEnabled = false
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.StatsPath != "" {
		cfg.StatsPath = flags.StatsPath
	}

	log, logCloser := logger.New(logger.Config{
		Dir:        cfg.Log.Dir,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(log)

	if err := deskpulse.RegisterMetricsDefault(); err != nil {
		return err
	}

	camera, err := buildCamera(cfg, flags, log)
	if err != nil {
		return err
	}

	tracker, err := deskpulse.New(deskpulse.Options{
		Config: cfg,
		Camera: camera,
		Log:    log,
	})
	if err != nil {
		if camera != nil {
			_ = camera.Close()
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tracker.Start(ctx); err != nil {
		tracker.Stop()
		return err
	}

	srv, err := deskpulse.NewHTTPServer(cfg.Listen, "", tracker)
	if err != nil {
		tracker.Stop()
		return err
	}
	log.Info("deskpulse running", "listen", cfg.Listen, "vision", cfg.VisionEnabled)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		log.Warn("http shutdown", "error", err)
	}
	cancel()
	tracker.Stop()
	return nil
}

func buildCamera(cfg deskpulse.Config, flags *RunFlags, log *slog.Logger) (vision.Capturer, error) {
	if !cfg.VisionEnabled {
		return nil, nil
	}
	if flags.SimulateVision {
		return vision.NewSimulatedCapturer(0), nil
	}
	cam, err := vision.NewCameraCapturer(cfg.CameraDeviceID, nil)
	if err != nil {
		// a missing camera downgrades the tracker, it should not kill it
		log.Warn("camera unavailable, continuing without vision", "device", cfg.CameraDeviceID, "error", err)
		return nil, nil
	}
	return cam, nil
}
