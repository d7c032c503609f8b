package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/stakemate/stakemate/internal/config"
	"github.com/stakemate/stakemate/internal/daemon"
	"github.com/stakemate/stakemate/internal/logging"
)

var (
	configPath = flag.String("config", defaultConfigPath(), "Path to config file")
	listenAddr = flag.String("listen", "", "HTTP API bind address (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
)

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stakemate", "config.yaml")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Daemon.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.Daemon.LogLevel = *logLevel
	}
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	d := daemon.New(cfg, *configPath)
	if err := d.Start(ctx); err != nil {
		log.Fatalf("Failed to start daemon: %v", err)
	}

	fmt.Printf("Stakemate daemon listening on %s\n", cfg.Daemon.ListenAddr)

	// Wait for signal
	<-sigChan
	fmt.Println("\nShutting down...")

	d.Stop()
}

func setupLogging(cfg *config.Config) {
	if cfg.Daemon.LogFormat == "text" {
		logging.SetTextOutput(os.Stdout)
		return
	}
	level := slog.LevelInfo
	switch cfg.LogLevelValue() {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logging.SetLevel(level)
}
