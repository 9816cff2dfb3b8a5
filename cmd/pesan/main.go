package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pesan/internal/api"
	"pesan/internal/chat"
	"pesan/internal/config"
	"pesan/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "config.toml", "Path to config file")
		serverURL   = flag.String("server", "", "Chat server base URL (overrides config)")
		userID      = flag.Int64("user", 0, "Your user id (overrides config)")
		peerID      = flag.Int64("peer", 0, "Peer user id to chat with")
		noNotify    = flag.Bool("no-notify", false, "Disable new-message alerts")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pesan %s\n", Version)
		os.Exit(0)
	}

	// Initialize logging
	if err := initLogging(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().Str("version", Version).Msg("Starting pesan")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}
	if *userID != 0 {
		cfg.Client.UserID = *userID
	}
	if cfg.Client.UserID == 0 {
		fmt.Fprintln(os.Stderr, "A user id is required (-user flag, config, or PESAN_USER_ID)")
		os.Exit(1)
	}
	if *peerID == 0 {
		fmt.Fprintln(os.Stderr, "A peer id is required (-peer flag)")
		os.Exit(1)
	}
	log.Debug().Interface("config", cfg).Int64("peer", *peerID).Msg("Configuration loaded")

	// Wire the engine
	transport := api.NewClient(cfg.Client.ServerURL, cfg.Client.UserID)
	store := chat.NewStore()
	bus := chat.NewEventBus(256)
	defer bus.Close()

	bridge := tui.NewBridge(cfg.Client.UserID, !*noNotify)
	pipeline := chat.NewPipeline(store, bridge, bridge, chat.NewClock(), cfg.Client.UserID)
	session := chat.NewSession(transport, store, pipeline, bus, chat.NewClock(), cfg.Client.UserID)

	// Subscribe before starting so no state change is missed
	eventCh := bus.Subscribe()
	session.Start(*peerID)

	model := tui.NewModel(session, bridge, eventCh, *peerID)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	bridge.SetProgram(program)

	if _, err := program.Run(); err != nil {
		session.Stop()
		log.Fatal().Err(err).Msg("TUI error")
	}

	session.Stop()
	log.Info().Msg("pesan shutdown complete")
}

func initLogging(debug bool) error {
	// Ensure data directory exists
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	// Open log file (truncate on startup)
	logPath := filepath.Join(dataDir, "pesan.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Log to file only (TUI owns stdout/stderr)
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()

	return nil
}
