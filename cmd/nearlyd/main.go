package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nearlyhq/nearly-go/internal/api"
	"github.com/nearlyhq/nearly-go/internal/config"
	"github.com/nearlyhq/nearly-go/internal/convsync"
	"github.com/nearlyhq/nearly-go/internal/metrics"
	"github.com/nearlyhq/nearly-go/internal/model"
	"github.com/nearlyhq/nearly-go/internal/ops"
	"github.com/nearlyhq/nearly-go/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "manual"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		handleInit()
		return
	}

	var (
		showVersion  = flag.Bool("version", false, "Show version information")
		configPath   = flag.String("config", "", "Path to configuration file")
		peer         = flag.String("peer", "", "Open a direct conversation with this user id")
		conversation = flag.String("conversation", "", "Open this group conversation id")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("nearlyd %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  by:     %s\n", builtBy)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("nearlyd - Nearly interaction & messaging sync engine")
		fmt.Println()
		fmt.Println("No configuration file specified. Use --config <path> to specify config.")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  nearlyd init                     Generate example configuration")
		fmt.Println("  nearlyd --version                Show version information")
		fmt.Println("  nearlyd --config <path>          Start with configuration file")
		fmt.Println("  nearlyd --config <path> --peer <id>")
		fmt.Println("                                   Open and sync a direct conversation")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting nearlyd %s\n", version)
	fmt.Printf("  User: %s\n", cfg.Identity.UserID)
	fmt.Printf("  API:  %s\n", cfg.API.BaseURL)
	fmt.Println()

	if err := run(cfg, *peer, *conversation); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, peer, conversation string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)

	if cfg.Metrics.Enabled {
		fmt.Printf("Starting metrics endpoint on %s...\n", cfg.Metrics.Listen)
		metrics.StartServer(cfg.Metrics.Listen)
	}

	fmt.Println("Initializing storage...")
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	fmt.Printf("  Storage: %s initialized\n", cfg.Storage.Driver)

	client := api.NewClient(&cfg.API)

	var engine *convsync.Engine
	switch {
	case peer != "":
		conv := model.Conversation{
			ID:             model.DirectConversationID(cfg.Identity.UserID, peer),
			Kind:           model.ConversationDirect,
			ParticipantIDs: []string{cfg.Identity.UserID, peer},
		}
		fmt.Printf("Opening direct conversation %s...\n", conv.ID)
		engine = convsync.NewEngine(&cfg.Sync, client, conv, cfg.Identity.UserID, logger)
	case conversation != "":
		conv := model.Conversation{
			ID:   conversation,
			Kind: model.ConversationGroup,
		}
		fmt.Printf("Opening group conversation %s...\n", conv.ID)
		engine = convsync.NewEngine(&cfg.Sync, client, conv, cfg.Identity.UserID, logger)
	}

	if engine != nil {
		engine.Start(ctx)
		defer engine.Stop()
		fmt.Println("  Sync engine started")

		go func() {
			ticker := time.NewTicker(10 * cfg.Sync.PollInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					snap := engine.View()
					logger.Info("conversation snapshot",
						"messages", len(snap.Messages),
						"days", len(snap.Days),
						"taken_at", snap.TakenAt)
				}
			}
		}()
	}

	fmt.Println()
	fmt.Println("✓ All services started successfully!")
	fmt.Println()
	fmt.Println("Press Ctrl+C to shutdown gracefully...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down gracefully...")
	logger.LogShutdown("signal")

	fmt.Println("✓ Shutdown complete")
	return nil
}

func handleInit() {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading example config: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(string(exampleConfig))
}
