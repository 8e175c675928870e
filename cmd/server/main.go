package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/api"
	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/config"
	"github.com/digiscribe/backend/internal/metastore"
	"github.com/digiscribe/backend/internal/paths"
	"github.com/digiscribe/backend/internal/reconcile"
	"github.com/digiscribe/backend/internal/remote"
	"github.com/digiscribe/backend/internal/stream"
	"github.com/digiscribe/backend/internal/upload"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("preparing directories")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metadata store: Mongo in production, in-memory without a URI.
	var store metastore.Store
	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		mongoStore, err := metastore.NewMongoStore(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to mongodb")
		}
		defer mongoStore.Close(context.Background())
		store = mongoStore
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongodb metadata store")
	} else {
		store = metastore.NewMemoryStore()
		log.Warn().Msg("no mongo uri configured, metadata is in-memory and will not survive restarts")
	}

	ftpClient := remote.NewFTPClient(remote.FTPConfig{
		Host:     cfg.FTP.Host,
		Port:     cfg.FTP.Port,
		User:     cfg.FTP.User,
		Password: cfg.FTP.Password,
		TLSMode:  cfg.FTP.TLSMode,
		BaseDir:  cfg.FTP.BaseDir,
		Timeout:  cfg.FTPTimeout(),
	}, log)

	resolver := paths.NewResolver(store)

	assembler := upload.NewManager(cfg.Upload.ScratchDir, ftpClient, cfg.Upload.RemoteAssembly, log)
	if cfg.Upload.MaxChunkSizeMB > 0 {
		assembler.SetMaxChunkSize(int64(cfg.Upload.MaxChunkSizeMB) << 20)
	}

	catalogSvc := catalog.NewService(store, ftpClient, resolver, assembler, log)
	streamer := stream.NewService(ftpClient, log)

	sweeper := reconcile.NewSweeper(store, ftpClient, log)
	sweeper.SetInterval(cfg.SweepInterval())
	sweeper.SetBatchSize(cfg.Sweep.BatchSize)
	if cfg.Sweep.Enabled {
		go sweeper.Start(ctx)
	}

	// Abandoned upload artifacts accumulate on local disk; sweep them on the
	// same cadence class as sessions.
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				assembler.CleanupOrphans(cfg.OrphanMaxAge())
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics"
		},
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// File bytes are already compressed media; gzip only burns CPU
			// and breaks range responses.
			return strings.HasPrefix(c.Request().URL.Path, "/api/files/") &&
				c.Request().Method == http.MethodGet
		},
	}))

	deps := &api.Dependencies{
		Catalog:   catalogSvc,
		Assembler: assembler,
		Streamer:  streamer,
		Remote:    ftpClient,
		Sweeper:   sweeper,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Version:   Version,
		Log:       log,
	}
	api.RegisterRoutes(e, api.NewHandlers(deps), deps)

	s := &http.Server{
		Addr:        cfg.ServerAddr(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout must cover the longest streaming download.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.ServerAddr()).
			Str("version", Version).
			Str("build", BuildTime).
			Msg("server starting")
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var w = os.Stderr
	logger := zerolog.New(w)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
