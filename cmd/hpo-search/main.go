package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/schriftgut/internal/config"
	"github.com/schriftgut/internal/dataset"
	"github.com/schriftgut/internal/hpo"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/split"
	"github.com/schriftgut/internal/trainer"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	model      = flag.String("model", "", "Search only this model (default: all configured models)")
	trials     = flag.Int("trials", 0, "Trials per model (overrides config)")
	seed       = flag.Int64("seed", 42, "Sampler seed")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.HPO.SearchSpace) == 0 {
		log.Fatalf("hpo_config.search_space is empty; nothing to search")
	}

	space, err := hpo.ParseSpace(cfg.HPO.SearchSpace)
	if err != nil {
		log.Fatalf("invalid search space: %v", err)
	}

	nTrials := cfg.HPO.Trials
	if *trials > 0 {
		nTrials = *trials
	}

	models := cfg.ModelsToTrain
	if *model != "" {
		models = []string{*model}
	}

	combined, err := dataset.Combine(cfg.Paths.ProcessedDir)
	if err != nil {
		log.Fatalf("failed to locate combined dataset: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.HPO.StorageDB), 0755); err != nil {
		log.Fatalf("failed to create storage directory: %v", err)
	}
	store, err := hpo.OpenStore(cfg.HPO.StorageDB)
	if err != nil {
		log.Fatalf("failed to open study store: %v", err)
	}
	defer store.Close()

	runtime := mlruntime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout)
	search := hpo.NewSearch(trainer.New(runtime), store, hpo.NewRandomSampler(*seed))

	ctx := context.Background()
	for _, m := range models {
		res, err := search.Run(ctx, hpo.Options{
			ModelName:             m,
			DataCSV:               combined,
			ModelsDir:             cfg.Paths.ModelsDir,
			Trials:                nTrials,
			Epochs:                cfg.HPO.Epochs,
			KeepTopN:              cfg.HPO.KeepTopNTrials,
			Space:                 space,
			Split:                 splitConfig(cfg),
			LearningRate:          cfg.Training.LearningRate,
			WeightDecay:           cfg.Training.WeightDecay,
			WarmupSteps:           cfg.Training.WarmupSteps,
			EarlyStoppingPatience: cfg.Training.EarlyStoppingPatience,
		})
		if err != nil {
			log.Printf("search for %s failed: %v", m, err)
			continue
		}

		if err := hpo.UpdateLeaderboard(cfg.HPO.LeaderboardPath, hpo.LeaderboardEntry{
			Model:     m,
			Study:     res.Study,
			BestValue: res.BestTrial.Value,
			BestTrial: res.BestTrial.Number,
			BestDir:   res.BestDir,
			UpdatedAt: time.Now(),
		}); err != nil {
			log.Printf("failed to update leaderboard: %v", err)
		}

		fmt.Printf("%s: best trial %d validation F1 %.4f (%s)\n", m, res.BestTrial.Number, res.BestTrial.Value, res.BestDir)
	}
}

func splitConfig(cfg *config.Config) split.Config {
	return split.Config{
		ValidationTestSize: cfg.DataSplit.ValidationTestSize,
		TestProportion:     cfg.DataSplit.TestProportion,
		Seed:               cfg.DataSplit.Seed,
		MinClassCount:      cfg.DataSplit.MinClassCount,
	}
}
