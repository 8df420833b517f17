package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backlab/simcore/internal/api"
	"github.com/backlab/simcore/internal/config"
	"github.com/backlab/simcore/internal/coordinator"
	"github.com/backlab/simcore/internal/logger"
	"github.com/backlab/simcore/internal/metrics"
	"github.com/backlab/simcore/internal/replay"
	"github.com/backlab/simcore/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simcore API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Initialize logger
	log := logger.Must(debug)
	defer log.Sync()

	// Load config
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	src, closeSrc, err := buildSource(cfg)
	if err != nil {
		return fmt.Errorf("opening bar source: %w", err)
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	archiver, err := buildArchiver(cfg)
	if err != nil {
		return fmt.Errorf("configuring archive: %w", err)
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	coord := coordinator.New(src, coordinator.Options{
		MaxRuns:  cfg.Server.MaxRuns,
		Timezone: cfg.Market.Timezone,
		Archiver: archiver,
		Metrics:  reg,
	}, log)

	log.Info("starting simcore server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("data_source", cfg.Data.Type),
	)

	server := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, coord, reg, log)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down simcore server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

// buildSource opens the historical bar source named by the data config.
// The returned closer is nil for sources without resources to release.
func buildSource(cfg *config.Config) (replay.Source, func() error, error) {
	switch cfg.Data.Type {
	case "csv":
		src, err := replay.LoadCSV(cfg.Data.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	default:
		src, err := replay.OpenSQLite(cfg.Data.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
}

func buildArchiver(cfg *config.Config) (*archive.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	var store archive.Storage
	var err error
	switch cfg.Archive.Type {
	case "s3":
		store, err = archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	default:
		store, err = archive.NewLocalFS(cfg.Archive.Path)
	}
	if err != nil {
		return nil, err
	}
	return archive.NewArchiver(store), nil
}
