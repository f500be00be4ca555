// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package config loads the pipeline configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/schriftgut/internal/hpo"
)

// Config holds the full pipeline configuration
type Config struct {
	LabelMap      map[string][]string `mapstructure:"label_map"` // label -> source folder names
	ModelsToTrain []string            `mapstructure:"models_to_train"`
	Training      TrainingConfig      `mapstructure:"training"`
	DataSplit     DataSplitConfig     `mapstructure:"data_split"`
	Paths         PathsConfig         `mapstructure:"paths"`
	Runtime       RuntimeConfig       `mapstructure:"runtime"`
	Extraction    ExtractionConfig    `mapstructure:"extraction"`
	Server        ServerConfig        `mapstructure:"server"`
	Inbox         InboxConfig         `mapstructure:"inbox"`
	HPO           HPOConfig           `mapstructure:"hpo_config"`
}

// TrainingConfig holds the default training recipe
type TrainingConfig struct {
	LearningRate          float64 `mapstructure:"learning_rate"`
	Epochs                int     `mapstructure:"epochs"`
	WeightDecay           float64 `mapstructure:"weight_decay"`
	WarmupSteps           int     `mapstructure:"warmup_steps"`
	EarlyStoppingPatience int     `mapstructure:"early_stopping_patience"`
	TrainBatchSize        int     `mapstructure:"train_batch_size"`
	EvalBatchSize         int     `mapstructure:"eval_batch_size"`
	GradAccumulationSteps int     `mapstructure:"gradient_accumulation_steps"`
}

// DataSplitConfig controls the train/validation/test partition
type DataSplitConfig struct {
	ValidationTestSize float64 `mapstructure:"validation_test_size"`
	TestProportion     float64 `mapstructure:"test_proportion"`
	Seed               int64   `mapstructure:"seed"`
	MinClassCount      int     `mapstructure:"min_class_count"`
}

// PathsConfig holds the pipeline directory layout
type PathsConfig struct {
	RawDir       string `mapstructure:"raw_dir"`
	SyntheticDir string `mapstructure:"synthetic_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
	ModelsDir    string `mapstructure:"models_dir"`
}

// RuntimeConfig holds the model runtime service connection settings
type RuntimeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 disables the client-side timeout
}

// ExtractionConfig holds OCR settings
type ExtractionConfig struct {
	TesseractBin string `mapstructure:"tesseract_bin"`
	Language     string `mapstructure:"language"`
	TessdataDir  string `mapstructure:"tessdata_dir"`
	DPI          int    `mapstructure:"dpi"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	ModelDir  string `mapstructure:"model_dir"`
	UploadDir string `mapstructure:"upload_dir"`
}

// InboxConfig holds hot-folder ingestion settings
type InboxConfig struct {
	WatchPaths  []string      `mapstructure:"watch_paths"`
	JournalPath string        `mapstructure:"journal_path"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// HPOConfig holds hyperparameter search settings
type HPOConfig struct {
	Trials          int                      `mapstructure:"n_trials"`
	Epochs          int                      `mapstructure:"epochs"`
	KeepTopNTrials  int                      `mapstructure:"keep_top_n_trials"`
	StorageDB       string                   `mapstructure:"storage_db"`
	LeaderboardPath string                   `mapstructure:"leaderboard_path"`
	SearchSpace     map[string]hpo.ParamSpec `mapstructure:"search_space"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set default values
	v.SetDefault("models_to_train", []string{"distilbert-base-german-cased"})
	v.SetDefault("training.learning_rate", 2e-5)
	v.SetDefault("training.epochs", 5)
	v.SetDefault("training.weight_decay", 0.01)
	v.SetDefault("training.warmup_steps", 100)
	v.SetDefault("training.early_stopping_patience", 2)
	v.SetDefault("data_split.validation_test_size", 0.3)
	v.SetDefault("data_split.test_proportion", 0.5)
	v.SetDefault("data_split.seed", 42)
	v.SetDefault("data_split.min_class_count", 3)
	v.SetDefault("paths.raw_dir", "data/raw")
	v.SetDefault("paths.synthetic_dir", "data/synthetic")
	v.SetDefault("paths.processed_dir", "data/processed")
	v.SetDefault("paths.models_dir", "models")
	v.SetDefault("runtime.base_url", "http://localhost:8500")
	v.SetDefault("extraction.language", "deu")
	v.SetDefault("extraction.dpi", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("inbox.settle_delay", "500ms")
	v.SetDefault("hpo_config.n_trials", 20)
	v.SetDefault("hpo_config.epochs", 2)
	v.SetDefault("hpo_config.keep_top_n_trials", 2)
	v.SetDefault("hpo_config.storage_db", "models/hpo_studies.db")
	v.SetDefault("hpo_config.leaderboard_path", "models/hpo_leaderboard.csv")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			log.Printf("Load: no config file found, using defaults")
		}
	}

	// Allow environment variables
	v.SetEnvPrefix("SCHRIFTGUT")
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if len(c.ModelsToTrain) == 0 {
		return fmt.Errorf("models_to_train must name at least one model")
	}
	if c.Runtime.BaseURL == "" {
		return fmt.Errorf("runtime.base_url is required")
	}
	if c.DataSplit.ValidationTestSize >= 1 {
		return fmt.Errorf("data_split.validation_test_size must be below 1, got %v", c.DataSplit.ValidationTestSize)
	}
	if len(c.HPO.SearchSpace) > 0 {
		if _, err := hpo.ParseSpace(c.HPO.SearchSpace); err != nil {
			return fmt.Errorf("invalid hpo search space: %w", err)
		}
	}
	return nil
}
