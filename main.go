package main

import (
	"log"

	"github.com/joho/godotenv"

	"veritas/app"
	"veritas/internal/api"
	"veritas/internal/config"
	"veritas/internal/repository"
	"veritas/internal/testkit"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Seeded mock LIMS dataset; a real deployment would swap in a
	// repository backed by the lab system.
	genCfg := testkit.DefaultLIMSConfig()
	genCfg.SampleCount = cfg.Data.Samples
	genCfg.Seed = cfg.Data.Seed
	repo := repository.NewMemoryRepository(testkit.NewLIMSGenerator(genCfg))

	svc := app.NewQualityService(repo, cfg.Analytics.SpecLimits, cfg.Analytics.CpkTarget)

	server := api.NewServer(cfg, svc, repo)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
