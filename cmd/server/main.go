package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/csvpreview/internal/archive"
	"github.com/JonMunkholm/csvpreview/internal/config"
	"github.com/JonMunkholm/csvpreview/internal/core"
	"github.com/JonMunkholm/csvpreview/internal/logging"
	"github.com/JonMunkholm/csvpreview/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Session journal: Postgres when configured, manifest files otherwise
	var journal core.Journal
	if cfg.Database.Enabled() {
		pool, err := connectDatabase(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pj := core.NewPostgresJournal(pool)
		if err := pj.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare session journal", "error", err)
			os.Exit(1)
		}
		journal = pj
	}

	var archiver core.Archiver
	if cfg.Archive.Enabled {
		a, err := archive.NewS3Archiver(ctx, archive.Options{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Prefix:    cfg.Archive.Prefix,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Endpoint:  cfg.Archive.Endpoint,
		})
		if err != nil {
			slog.Error("failed to configure archive", "error", err)
			os.Exit(1)
		}
		archiver = a
		slog.Info("archiving finalized uploads", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
	}

	var metricsHandler http.Handler
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.MustNewMetrics(reg)
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	service, err := core.NewService(core.ServiceConfig{
		DataDir: cfg.Storage.DataDir,
		Chunks: core.ChunkLimits{
			MaxChunkSize:   cfg.Upload.MaxChunkSize,
			MaxTotalChunks: cfg.Upload.MaxTotalChunks,
		},
		Finalize: core.FinalizerConfig{
			PreviewRows: cfg.Upload.PreviewRows,
			Timeout:     cfg.Upload.Timeout,
		},
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
		SessionTTL:      cfg.Storage.SessionTTL,
		JanitorInterval: cfg.Storage.JanitorInterval,
	}, journal, archiver, metrics)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	restored, err := service.Store.Restore(ctx)
	if err != nil {
		// Partial restores still serve the sessions that loaded.
		slog.Warn("some sessions could not be restored", "error", err)
	}
	slog.Info("sessions restored", "count", restored)

	server := web.NewServer(cfg, service, metricsHandler)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.Janitor.Run(jobCtx)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Health().Limiter; status.Active > 0 {
			slog.Info("waiting for finalizations to complete", "active", status.Active)
		}

		err := multierr.Combine(
			server.Shutdown(shutdownCtx),
			service.Shutdown(shutdownCtx),
		)
		if err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

// connectDatabase opens and verifies a pgx pool for the session journal.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
