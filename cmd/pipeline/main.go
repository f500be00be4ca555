package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/schriftgut/internal/config"
	"github.com/schriftgut/internal/dataset"
	"github.com/schriftgut/internal/extractor"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/split"
	"github.com/schriftgut/internal/trainer"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	skipBuild  = flag.Bool("skip-build", false, "Skip dataset building and reuse existing CSVs")
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

	ctx := context.Background()

	if !*skipBuild {
		if err := buildDatasets(ctx, cfg); err != nil {
			log.Fatalf("dataset build failed: %v", err)
		}
	}

	combined, err := dataset.Combine(cfg.Paths.ProcessedDir)
	if err != nil {
		log.Fatalf("failed to combine datasets: %v", err)
	}

	runtime := mlruntime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout)
	t := trainer.New(runtime)

	type outcome struct {
		model  string
		report trainer.Report
	}
	var outcomes []outcome

	for _, model := range cfg.ModelsToTrain {
		saveDir := filepath.Join(cfg.Paths.ModelsDir, strings.ReplaceAll(model, "/", "_"))
		report, err := t.Run(ctx, trainer.Options{
			ModelName:             model,
			SaveDir:               saveDir,
			DataCSV:               combined,
			LearningRate:          cfg.Training.LearningRate,
			Epochs:                cfg.Training.Epochs,
			WeightDecay:           cfg.Training.WeightDecay,
			WarmupSteps:           cfg.Training.WarmupSteps,
			EarlyStoppingPatience: cfg.Training.EarlyStoppingPatience,
			TrainBatchSize:        cfg.Training.TrainBatchSize,
			EvalBatchSize:         cfg.Training.EvalBatchSize,
			GradAccumulationSteps: cfg.Training.GradAccumulationSteps,
			Split:                 splitConfig(cfg),
		})
		if err != nil {
			log.Printf("training %s failed: %v", model, err)
			continue
		}
		outcomes = append(outcomes, outcome{model: model, report: report})
	}

	if len(outcomes) == 0 {
		log.Fatalf("no model trained successfully")
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].report.Phases.Testing.Metrics.TestF1 > outcomes[j].report.Phases.Testing.Metrics.TestF1
	})

	fmt.Println("\nModel leaderboard (by test F1):")
	for rank, o := range outcomes {
		m := o.report.Phases.Testing.Metrics
		fmt.Printf("%d. %-40s F1=%.4f accuracy=%.4f decision=%s\n",
			rank+1, o.model, m.TestF1, m.TestAccuracy, o.report.GeneralEval.DeploymentDecision)
	}
}

// buildDatasets extracts raw and synthetic corpora into per-source CSVs.
func buildDatasets(ctx context.Context, cfg *config.Config) error {
	folderToLabel := invertLabelMap(cfg.LabelMap)
	if len(folderToLabel) == 0 {
		return fmt.Errorf("label_map is empty")
	}

	ext := extractor.New(extractor.Config{
		TesseractBin: cfg.Extraction.TesseractBin,
		Language:     cfg.Extraction.Language,
		TessdataDir:  cfg.Extraction.TessdataDir,
		DPI:          cfg.Extraction.DPI,
	})
	builder := dataset.NewBuilder(ext)

	sources := map[string]string{
		"raw_data.csv":       cfg.Paths.RawDir,
		"synthetic_data.csv": cfg.Paths.SyntheticDir,
	}
	built := 0
	for name, dir := range sources {
		if _, err := os.Stat(dir); err != nil {
			log.Printf("source directory %s not present, skipping", dir)
			continue
		}
		outputCSV := filepath.Join(cfg.Paths.ProcessedDir, name)
		records, err := builder.Build(ctx, dir, outputCSV, folderToLabel)
		if err != nil {
			return err
		}
		if records != nil {
			built++
		}
	}
	if built == 0 {
		log.Printf("no new datasets built; relying on existing CSVs in %s", cfg.Paths.ProcessedDir)
	}
	return nil
}

// invertLabelMap turns the config's label -> folders mapping into the
// folder -> label mapping the builder consumes.
func invertLabelMap(labelMap map[string][]string) map[string]string {
	out := map[string]string{}
	for label, folders := range labelMap {
		for _, folder := range folders {
			out[folder] = label
		}
	}
	return out
}

func splitConfig(cfg *config.Config) split.Config {
	return split.Config{
		ValidationTestSize: cfg.DataSplit.ValidationTestSize,
		TestProportion:     cfg.DataSplit.TestProportion,
		Seed:               cfg.DataSplit.Seed,
		MinClassCount:      cfg.DataSplit.MinClassCount,
	}
}
