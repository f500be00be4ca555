// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
label_map:
  invoice: ["rechnungen", "invoices"]
  contract: ["vertraege"]

models_to_train:
  - deepset/gbert-base
  - distilbert-base-german-cased

training:
  learning_rate: 3.0e-5
  epochs: 4

paths:
  raw_dir: /data/raw
  models_dir: /data/models

runtime:
  base_url: http://runtime:8500
  timeout: 30s

hpo_config:
  n_trials: 10
  keep_top_n_trials: 3
  search_space:
    learning_rate:
      type: float
      args: [1.0e-5, 5.0e-5]
      log: true
    train_batch_size:
      type: categorical
      args: [4, 8, 16]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.LabelMap["invoice"]) != 2 || cfg.LabelMap["contract"][0] != "vertraege" {
		t.Errorf("label map = %+v", cfg.LabelMap)
	}
	if len(cfg.ModelsToTrain) != 2 {
		t.Errorf("models = %v", cfg.ModelsToTrain)
	}
	if cfg.Training.LearningRate != 3e-5 || cfg.Training.Epochs != 4 {
		t.Errorf("training = %+v", cfg.Training)
	}
	// Unset fields keep their defaults.
	if cfg.Training.WeightDecay != 0.01 || cfg.Training.EarlyStoppingPatience != 2 {
		t.Errorf("training defaults lost: %+v", cfg.Training)
	}
	if cfg.DataSplit.Seed != 42 || cfg.DataSplit.MinClassCount != 3 {
		t.Errorf("split defaults lost: %+v", cfg.DataSplit)
	}
	if cfg.Extraction.Language != "deu" || cfg.Extraction.DPI != 300 {
		t.Errorf("extraction defaults lost: %+v", cfg.Extraction)
	}
	if cfg.Runtime.BaseURL != "http://runtime:8500" || cfg.Runtime.Timeout.Seconds() != 30 {
		t.Errorf("runtime = %+v", cfg.Runtime)
	}
	if cfg.HPO.Trials != 10 || cfg.HPO.KeepTopNTrials != 3 || len(cfg.HPO.SearchSpace) != 2 {
		t.Errorf("hpo = %+v", cfg.HPO)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	// Run from an empty directory so no stray config.yaml is picked up.
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Paths.ProcessedDir != "data/processed" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_InvalidSearchSpaceRejected(t *testing.T) {
	path := writeConfig(t, `
runtime:
  base_url: http://runtime:8500
hpo_config:
  search_space:
    learning_rate:
      type: gaussian
      args: [1, 2]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("invalid search space must be rejected at load time")
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicitly named missing config must fail")
	}
}
