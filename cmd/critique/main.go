// Critique review server — accepts pull-request review requests over HTTP
// and drives the multi-stage LLM review pipeline.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/critique/pkg/api"
	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/orchestrator"
	"github.com/codeready-toolchain/critique/pkg/retrieval"
	"github.com/codeready-toolchain/critique/pkg/scm"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting critique", "http_port", httpPort, "config_dir", *configDir)

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Optional retrieval service
	var retriever retrieval.Service
	if cfg.RetrievalBaseURL != "" {
		retriever = retrieval.NewClient(cfg.RetrievalBaseURL, cfg.Defaults.RetrievalTimeout)
		slog.Info("Retrieval client initialized", "base_url", cfg.RetrievalBaseURL)
	} else {
		slog.Info("No retrieval service configured, reviews run without repository context")
	}

	// 3. Optional SCM backend for LLM tool calls
	var tools orchestrator.ToolBackend
	if scmURL := os.Getenv("SCM_BASE_URL"); scmURL != "" {
		tools = scm.NewClient(scmURL, os.Getenv("SCM_TOKEN"), cfg.Defaults.RetrievalTimeout)
		slog.Info("SCM client initialized", "base_url", scmURL)
	} else {
		slog.Info("No SCM service configured, tool calling is disabled")
	}

	// 4. Coordinator and HTTP server
	coordinator := orchestrator.NewCoordinator(cfg, retriever, tools)
	server := api.NewServer(cfg, coordinator)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 5. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 6. Graceful shutdown: in-flight reviews get a short grace period
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
