// Package main provides a CLI tool for running database migrations and
// seeding the trader directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/copytrade-ledger/internal/config"
	"github.com/copytrade-ledger/internal/service"
	"github.com/copytrade-ledger/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Target: postgres, clickhouse, traders")
		seed   = flag.String("seed", "", "Trader seed YAML for -db traders (defaults to TRADER_SEED_FILE)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch *dbType {
	case "postgres":
		err = runPostgresMigrations(cfg, *action)
	case "clickhouse":
		err = runClickHouseMigrations(ctx, cfg, *action)
	case "traders":
		path := *seed
		if path == "" {
			path = cfg.Directory.SeedFile
		}
		err = seedTraders(ctx, cfg, path)
	default:
		log.Fatalf("Unknown database type: %s", *dbType)
	}
	if err != nil {
		log.Fatalf("%s %s failed: %v", *dbType, *action, err)
	}
}

func runPostgresMigrations(cfg *config.Config, action string) error {
	databaseURL := storage.PostgresURL(&cfg.Database.Postgres)
	migrationsPath := "migrations/postgres"

	switch action {
	case "up":
		log.Println("Running Postgres migrations...")
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		log.Println("Postgres migrations completed")

	case "down":
		log.Println("Rolling back Postgres migration...")
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			return err
		}
		log.Printf("Postgres migration version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runClickHouseMigrations(ctx context.Context, cfg *config.Config, action string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}

	migrationsPath := "migrations/clickhouse"
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", migrationsPath)
	}

	db, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	log.Println("Running ClickHouse migrations...")
	if err := storage.RunClickHouseMigrations(ctx, db, migrationsPath); err != nil {
		return err
	}
	log.Println("ClickHouse migrations completed")
	return nil
}

// seedTraders upserts the traders of a seed file into the Postgres directory.
// An empty path seeds the built-in traders.
func seedTraders(ctx context.Context, cfg *config.Config, path string) error {
	traders, err := service.LoadTraderSeed(path)
	if err != nil {
		return err
	}

	db, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	defer db.Close()

	if err := storage.NewTraderRepository(db).Upsert(ctx, traders); err != nil {
		return err
	}
	log.Printf("Seeded %d traders", len(traders))
	return nil
}
