// Package main is the entry point for the authentication server.
//
// main stays minimal — its job is to:
//  1. Set up logging
//  2. Load configuration from the environment
//  3. Create and start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, internal/service, ...).
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Sequence-Game/auth-module/internal/config"
	"github.com/Sequence-Game/auth-module/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the database directory exists before the driver tries to
	// create the file.
	if dbDir := filepath.Dir(cfg.DBPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
