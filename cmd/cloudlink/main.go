// Cloudlink - secure cloud telemetry agent for heat pump controllers
//
// This is the main entry point for the cloudlink agent. It keeps an
// authenticated, encrypted session to the device broker, polls the heat
// pump, persists user setpoints and publishes telemetry when state changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/cloudlink.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown. A setup failure or a failed broker
// session is returned so the service manager restarts the agent.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting cloudlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	a, err := newAgent(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx)
}

// getConfigPath returns the configuration file path.
// Uses CLOUDLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLOUDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
