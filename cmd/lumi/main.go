package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/lumi/internal/config"
	"github.com/xonecas/lumi/internal/provider"
	"github.com/xonecas/lumi/internal/store"
	"github.com/xonecas/lumi/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

const systemPrompt = "You are Lumi, a helpful assistant running in a terminal chat client. " +
	"Keep answers concise; the display is a fixed-width terminal."

func main() {
	// Parse flags
	var (
		showVersion  = flag.Bool("version", false, "Show version and exit")
		configPath   = flag.String("config", "config.toml", "Path to config file")
		providerName = flag.String("provider", "openai", "Provider to chat with (from config)")
		chatID       = flag.String("chat", "", "Open a chat by ID instead of the chat list")
		debug        = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lumi %s\n", Version)
		os.Exit(0)
	}

	// Initialize logging
	if err := initLogging(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().Str("version", Version).Msg("Starting lumi")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log.Debug().Interface("config", cfg).Msg("Configuration loaded")

	// Initialize store
	s, err := store.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer s.Close()
	log.Debug().Msg("Store initialized")

	// Initialize providers
	registry := initProviders(cfg)
	active, err := registry.Get(*providerName)
	if err != nil {
		log.Fatal().Err(err).Str("provider", *providerName).Msg("Provider not configured")
	}
	log.Debug().Int("providers", len(registry.List())).Str("active", active.Name()).Msg("Providers initialized")

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Create and run TUI
	model := tui.New(tui.Options{
		Store:         s,
		Config:        cfg,
		Provider:      active,
		SystemPrompt:  systemPrompt,
		InitialChatID: *chatID,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-sigCh
		log.Info().Msg("Received shutdown signal")
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		log.Fatal().Err(err).Msg("TUI error")
	}

	log.Info().Msg("lumi shutdown complete")
}

func initLogging(debug bool) error {
	// Ensure data directory exists
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	// Open log file (truncate on startup)
	logPath := filepath.Join(dataDir, "lumi.log")
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

func initProviders(cfg *config.Config) *provider.Registry {
	registry := provider.NewRegistry()

	for name, pc := range cfg.Providers {
		apiKey := ""
		if pc.APIKeyEnv != "" {
			apiKey = os.Getenv(pc.APIKeyEnv)
		}
		if apiKey == "" && pc.APIKeyEnv != "" {
			log.Warn().Str("provider", name).Str("env", pc.APIKeyEnv).Msg("API key env var is empty")
		}
		registry.Register(provider.NewOpenAI(name, pc, apiKey))
	}

	return registry
}
