// Command server runs the snapgram API.
//
// Configuration is read from the environment (and an optional .env file);
// see internal/config for every variable. The process refuses to start
// without WEBHOOK_SIGNING_SECRET.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/snapgram/internal/config"
	"github.com/sakif/snapgram/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
