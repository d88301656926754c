package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mikasa-gate/internal/config"
	"mikasa-gate/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring
	container, err := config.NewContainer(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	err = server.Run(ctx, container)
	if closeErr := container.Close(); closeErr != nil {
		container.Logger.Warn("Failed to release resources", "error", closeErr)
	}
	if err != nil {
		container.Logger.Error("Server failed", err)
		os.Exit(1)
	}
}
