// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package trainer

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReportFileName is written into the model save directory after a run.
const ReportFileName = "experiment_report.json"

// deployment decisions for the report's general evaluation.
const (
	DecisionApproved    = "APPROVED"
	DecisionNeedsReview = "NEEDS_REVIEW"
)

// approvalF1Threshold gates the deployment decision on test F1.
const approvalF1Threshold = 0.8

// Report is the structured experiment record persisted beside the model.
type Report struct {
	ExperimentID    string            `json:"experiment_id"`
	ModelType       string            `json:"model_type"`
	Hyperparameters ReportHyperparams `json:"hyperparameters"`
	DatasetConfig   DatasetConfig     `json:"dataset_config"`
	Phases          Phases            `json:"phases"`
	GeneralEval     GeneralEvaluation `json:"general_evaluation"`
}

type ReportHyperparams struct {
	LearningRate          float64  `json:"learning_rate"`
	Epochs                int      `json:"epochs"`
	TrainBatchSize        int      `json:"train_batch_size"`
	EvalBatchSize         int      `json:"eval_batch_size"`
	GradAccumulationSteps int      `json:"gradient_accumulation_steps"`
	WeightDecay           float64  `json:"weight_decay"`
	WarmupSteps           int      `json:"warmup_steps"`
	Dropout               *float64 `json:"dropout"`
	Device                string   `json:"device"`
	FP16Enabled           bool     `json:"fp16_enabled"`
}

type DatasetConfig struct {
	NumLabels         int               `json:"num_labels"`
	LabelClasses      []string          `json:"label_classes"`
	SplittingStrategy SplittingStrategy `json:"splitting_strategy"`
}

type SplittingStrategy struct {
	TrainingCount   int `json:"training_count"`
	ValidationCount int `json:"validation_count"`
	TestCount       int `json:"test_count"`
}

// Phases mirrors the run order: train, then validate, then the single
// final pass over the held-out test set.
type Phases struct {
	Training   TrainingPhase   `json:"1_training"`
	Validation ValidationPhase `json:"2_validation"`
	Testing    TestingPhase    `json:"3_testing"`
}

type TrainingPhase struct {
	Status  string          `json:"status"`
	Metrics TrainingMetrics `json:"metrics"`
}

type TrainingMetrics struct {
	FinalTrainingLoss   float64 `json:"final_training_loss"`
	TotalRuntimeSeconds float64 `json:"total_runtime_seconds"`
}

type ValidationPhase struct {
	Purpose string            `json:"purpose"`
	Metrics ValidationMetrics `json:"metrics"`
}

type ValidationMetrics struct {
	ValidationLoss     float64 `json:"validation_loss"`
	ValidationF1       float64 `json:"validation_f1"`
	ValidationAccuracy float64 `json:"validation_accuracy"`
}

type TestingPhase struct {
	Purpose string      `json:"purpose"`
	Metrics TestMetrics `json:"metrics"`
}

type TestMetrics struct {
	TestLoss      float64 `json:"test_loss"`
	TestAccuracy  float64 `json:"test_accuracy"`
	TestF1        float64 `json:"test_f1"`
	TestPrecision float64 `json:"test_precision"`
	TestRecall    float64 `json:"test_recall"`
}

type GeneralEvaluation struct {
	Summary            string `json:"summary"`
	DeploymentDecision string `json:"deployment_decision"`
}

// newExperimentID builds a short unique run id like EXP-gbert-base-a3f1.
func newExperimentID(modelName string) string {
	short := modelName
	if i := strings.LastIndex(short, "/"); i >= 0 {
		short = short[i+1:]
	}
	buf := make([]byte, 2)
	rand.Read(buf)
	return fmt.Sprintf("EXP-%s-%s", short, hex.EncodeToString(buf))
}

// decide maps the test F1 score to a deployment decision.
func decide(testF1 float64) string {
	if testF1 > approvalF1Threshold {
		return DecisionApproved
	}
	return DecisionNeedsReview
}

// WriteReport persists the report into dir as ReportFileName.
func WriteReport(dir string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ReportFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadReport reads a previously written experiment report.
func LoadReport(dir string) (Report, error) {
	path := filepath.Join(dir, ReportFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return report, nil
}
