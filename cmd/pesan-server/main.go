package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pesan/internal/config"
	"pesan/internal/server"
	"pesan/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "config.toml", "Path to config file")
		listen      = flag.String("listen", "", "Listen address (overrides config)")
		dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
		mediaDir    = flag.String("media", "", "Media storage directory (overrides config)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pesan-server %s\n", Version)
		os.Exit(0)
	}

	// Configure zerolog (server logs to stderr)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	log.Info().Str("version", Version).Msg("Starting pesan-server")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if *mediaDir != "" {
		cfg.Server.MediaDir = *mediaDir
	}

	// Initialize store
	var st *store.Store
	if cfg.Server.DBPath != "" {
		st, err = store.Open(cfg.Server.DBPath)
	} else {
		st, err = store.New()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer st.Close()
	log.Debug().Msg("Store initialized")

	if cfg.Server.MediaDir == "" {
		dataDir, err := config.EnsureDataDir()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure data dir")
		}
		cfg.Server.MediaDir = filepath.Join(dataDir, "media")
	}

	srv := server.New(st, cfg.Server.MediaDir, cfg.Server.MaxUploadBytes)
	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info().Msg("Received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown did not complete cleanly")
		}
	}()

	log.Info().Str("listen", cfg.Server.Listen).Str("media_dir", cfg.Server.MediaDir).Msg("Serving chat API")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("pesan-server shutdown complete")
}
