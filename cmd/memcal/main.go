package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"memcal/internal/config"
	"memcal/internal/database"
	"memcal/internal/feed"
	"memcal/internal/idgen"
	"memcal/internal/server"
)

var (
	// Version will be set during build
	Version = "dev"

	// Command line flags
	port     = flag.Int("port", 0, "Port to run the server on (default: 8080 or MEMCAL_PORT)")
	dbPath   = flag.String("db", "", "Path to database file (default: data/memcal.db or MEMCAL_DB_PATH)")
	interval = flag.Duration("sync-interval", 0, "Sync sweep interval (default: 5m or MEMCAL_SYNC_INTERVAL)")
	version  = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("memcal version %s\n", Version)
		return
	}

	logger := log.New(os.Stdout, "memcal: ", log.LstdFlags|log.Lshortfile)

	// A missing .env file is fine; the environment still applies.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("Error loading .env file: %v", err)
	}

	cfg := config.GetConfig()
	if *port > 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *interval > 0 {
		cfg.SyncInterval = *interval
	}
	if cfg.SyncInterval < time.Minute {
		cfg.SyncInterval = time.Minute
	}

	logger.Printf("Starting memcal v%s", Version)
	logger.Printf("Port: %d", cfg.Port)
	logger.Printf("Database: %s", cfg.DBPath)
	logger.Printf("Sync interval: %s", cfg.SyncInterval)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := database.NewDB(cfg.DBPath, database.DefaultConfig())
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ids, err := idgen.New()
	if err != nil {
		logger.Fatalf("Failed to initialize id generator: %v", err)
	}

	feedService := feed.NewService(db, logger)
	if err := feedService.Start(cfg.SyncInterval); err != nil {
		logger.Fatalf("Failed to start feed service: %v", err)
	}
	defer feedService.Stop()

	srv, err := server.NewServer(db, logger, feedService.Syncer(), ids)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(cfg.GetAddress()); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
