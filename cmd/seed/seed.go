package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"altotrafico-web/internal/config"
	"altotrafico-web/internal/storage"
	"altotrafico-web/models"
	"altotrafico-web/services"
	"altotrafico-web/utils"
)

func main() {
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kv := storage.NewRedisKV(rdb)
	store := storage.NewStore(kv)

	password := cfg.SeedAdminPassword
	generated := password == ""
	if generated {
		password, err = utils.RandomPassword(16)
		if err != nil {
			log.Fatalf("Failed to generate password: %v", err)
		}
	}

	users := services.NewUsersService(store, cfg.BcryptCost)
	created, err := users.EnsureUser(ctx, "1", cfg.SeedAdminUsername, cfg.SeedAdminEmail, password)
	if err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}
	if !created {
		fmt.Println("Admin users already exist, nothing to seed")
	} else {
		fmt.Println("Admin user created")
		fmt.Printf("   Username: %s\n", cfg.SeedAdminUsername)
		fmt.Printf("   Email: %s\n", cfg.SeedAdminEmail)
		if generated {
			fmt.Printf("   Password: %s\n", password)
			fmt.Println("   Store it now, it is not shown again.")
		}
	}

	exists, err := kv.Exists(ctx, storage.KeySettings)
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}
	if !exists {
		if err := store.WriteSettings(ctx, models.DefaultSiteSettings()); err != nil {
			log.Fatalf("Failed to write default settings: %v", err)
		}
		fmt.Println("Default site settings written")
	}
}
