package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ticketflow/internal/database"
	"ticketflow/internal/models"

	"github.com/sirupsen/logrus"
)

func main() {
	dbPath := flag.String("db", "./ticketflow.db", "Path to the database file")
	seedPath := flag.String("seed", "seed.yaml", "Path to the YAML seed file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed, err := loadSeed(*seedPath)
	if err != nil {
		logger.Fatalf("Failed to load seed: %v", err)
	}

	db, err := database.New(ctx, models.DatabaseConfig{Path: *dbPath})
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := apply(ctx, db, seed, logger); err != nil {
		logger.Errorf("Failed to apply seed: %v", err)
		db.Close()
		os.Exit(1)
	}
}
