// Package main is the entry point for the notebox server.
//
// main stays minimal: read configuration, create the logger, hand both to
// internal/server. Configuration problems are fatal here. At runtime the
// same problems only degrade tenant provisioning, so catching them before
// the first sign-in is the one place they can stop the process.
package main

import (
	"log/slog"
	"os"

	"go.uber.org/multierr"

	"github.com/sakif/notebox/internal/config"
	"github.com/sakif/notebox/internal/server"
)

func main() {
	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		fatalConfig(boot, err)
	}
	if err := cfg.Validate(); err != nil {
		fatalConfig(boot, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func fatalConfig(logger *slog.Logger, err error) {
	for _, e := range multierr.Errors(err) {
		logger.Error("configuration error", slog.String("error", e.Error()))
	}
	os.Exit(1)
}
