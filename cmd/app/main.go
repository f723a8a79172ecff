package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SpreadScout/internal/di"
	"SpreadScout/internal/domain/models"
	"SpreadScout/internal/usecase"
	"SpreadScout/pkg/config"
)

type oneShotOutput struct {
	Summary models.RunSummary     `json:"summary"`
	Spreads []models.SpreadRecord `json:"spreads"`
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	snapshotPath := flag.String("snapshot", "", "run discovery once on a chain snapshot JSON file and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *snapshotPath != "" {
		if err := runOnce(cfg, *snapshotPath); err != nil {
			log.Fatalf("discovery failed: %v", err)
		}
		return
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		cleanup()
		os.Exit(1)
	}
}

// runOnce prints the ranked spreads and the run summary as JSON on stdout.
// Logs go to stderr so the output stays parseable.
func runOnce(cfg *config.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := usecase.DecodeSnapshot(raw)
	if err != nil {
		return err
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	discovery, cleanup, err := di.InitializeDiscovery(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := discovery.Run(ctx, snap)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(oneShotOutput{Summary: run.RunSummary(), Spreads: run.Spreads})
}
