package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/timestitch/timestitch/internal/config"
	"github.com/timestitch/timestitch/internal/connectivity"
	"github.com/timestitch/timestitch/internal/log"
	"github.com/timestitch/timestitch/internal/remote"
	"github.com/timestitch/timestitch/internal/service"
	"github.com/timestitch/timestitch/internal/store"
	"github.com/timestitch/timestitch/internal/syncer"
	"github.com/timestitch/timestitch/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("timestitch %s\n", Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting timestitch", "version", Version)

	if !cfg.IsConfigured() {
		return runSetupFlow(cfg, logger)
	}

	client := remote.NewClient(cfg.Server.URL, cfg.Server.Token, cfg.Server.Timeout, logger)

	journalStore, err := store.NewJournalStore(cfg.Sync.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open local storage: %w", err)
	}
	defer journalStore.Close()

	monitor := connectivity.NewMonitor(logger)

	engine := syncer.NewEngine(journalStore, client, monitor, journalStore, logger,
		syncer.WithInterval(cfg.Sync.Interval),
		syncer.WithCallTimeout(cfg.Server.Timeout),
	)

	journal := service.NewJournalService(client, journalStore, monitor, journalStore, logger)
	journal.OnQueued(engine.NotePending)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := journal.Load(ctx); err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	go monitor.RunProbe(ctx, client, cfg.Sync.ProbeInterval)
	engine.Start()
	defer engine.Stop()

	model := tui.NewModel(journal, engine, logger)

	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runSetupFlow handles the initial setup when not configured
func runSetupFlow(cfg *config.Config, logger *slog.Logger) error {
	fmt.Println()
	fmt.Println("Welcome to TimeStitch!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	var serverURL string
	for {
		fmt.Print("Enter your server URL (e.g., https://api.timestitch.app): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		serverURL = strings.TrimSpace(input)
		if serverURL != "" {
			break
		}
		fmt.Println("Server URL cannot be empty. Please try again.")
	}

	fmt.Print("Email: ")
	emailInput, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	email := strings.TrimSpace(emailInput)

	// Prompt for password (hidden input)
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := string(passwordBytes)
	fmt.Println()

	fmt.Println()
	fmt.Println("Authenticating...")

	client := remote.NewClient(serverURL, "", cfg.Server.Timeout, logger)
	result, err := client.Authenticate(context.Background(), email, password)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	cfg.Server.URL = serverURL
	cfg.Server.Email = email
	cfg.Server.Token = result.Token

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run timestitch again to start the application.")

	return nil
}
