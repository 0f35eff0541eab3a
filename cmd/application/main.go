package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"catalogsync/config"
	"catalogsync/internal/catalog/app"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, relying on environment")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", configPath, err)
	}

	// Environment overrides the file for database credentials.
	if os.Getenv("POSTGRES_HOST") != "" {
		cfg.Postgres = *config.GetPostgresConfig()
	}
	if key := os.Getenv("SUPPLIER_API_KEY"); key != "" {
		cfg.Supplier.ApiKey = key
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, os.Stdout)
	if err := application.Run(ctx); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
