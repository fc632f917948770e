package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"altotrafico-web/internal/config"
	"altotrafico-web/internal/storage"
	"altotrafico-web/services"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  check      - Report stored site documents that need cleaning")
		fmt.Println("  normalize  - Rewrite stored site documents through current validation")
		os.Exit(1)
	}

	command := os.Args[1]
	var dryRun bool
	switch command {
	case "check":
		dryRun = true
	case "normalize":
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := services.MigrateSiteDocuments(ctx, storage.NewRedisKV(rdb), dryRun)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	invalid := 0
	for _, r := range results {
		line := fmt.Sprintf("%-22s %s", r.Key, r.Status)
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		fmt.Println(line)
		if r.Status == services.MigrationInvalid {
			invalid++
		}
	}

	if dryRun {
		fmt.Println("Check completed, nothing written")
	} else {
		fmt.Println("Normalization completed")
	}
	if invalid > 0 {
		os.Exit(2)
	}
}
