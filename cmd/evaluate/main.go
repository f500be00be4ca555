package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/schriftgut/internal/config"
	"github.com/schriftgut/internal/dataset"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/split"
	"github.com/schriftgut/internal/trainer"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	modelDir   = flag.String("model-dir", "", "Trained model directory to evaluate")
	dataCSV    = flag.String("data", "", "Dataset CSV (default: combined dataset from config paths)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *modelDir == "" {
		log.Fatalf("-model-dir is required")
	}

	csvPath := *dataCSV
	if csvPath == "" {
		csvPath = filepath.Join(cfg.Paths.ProcessedDir, dataset.CombinedName)
	}

	runtime := mlruntime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout)
	t := trainer.New(runtime)

	metrics, err := t.Evaluate(context.Background(), *modelDir, csvPath, split.Config{
		ValidationTestSize: cfg.DataSplit.ValidationTestSize,
		TestProportion:     cfg.DataSplit.TestProportion,
		Seed:               cfg.DataSplit.Seed,
		MinClassCount:      cfg.DataSplit.MinClassCount,
	})
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	fmt.Printf("model:     %s\n", *modelDir)
	fmt.Printf("loss:      %.4f\n", metrics.Loss)
	fmt.Printf("accuracy:  %.4f\n", metrics.Accuracy)
	fmt.Printf("f1:        %.4f\n", metrics.F1)
	fmt.Printf("precision: %.4f\n", metrics.Precision)
	fmt.Printf("recall:    %.4f\n", metrics.Recall)
}
