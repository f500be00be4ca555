// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package trainer orchestrates one fine-tuning experiment end to end:
// resource planning, data splitting, the training call into the model
// runtime, the two evaluation passes and the persisted experiment report.
package trainer

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schriftgut/internal/device"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/split"
)

// Tokenizer limits handed to the runtime for every run.
const (
	tokenMaxLength     = 512
	tokenizerBatchSize = 1000
)

// Options configures one experiment. Zero batch values defer to the
// device advisor.
type Options struct {
	ModelName string // pretrained model identifier, e.g. "deepset/gbert-base"
	SaveDir   string // model weights, label classes and report land here
	DataCSV   string // combined dataset table

	LearningRate          float64
	Epochs                int
	WeightDecay           float64
	WarmupSteps           int
	EarlyStoppingPatience int
	Dropout               *float64

	TrainBatchSize        int
	EvalBatchSize         int
	GradAccumulationSteps int

	Split split.Config
}

// Trainer runs experiments against a model runtime.
type Trainer struct {
	runtime mlruntime.Runtime
}

func New(runtime mlruntime.Runtime) *Trainer {
	return &Trainer{runtime: runtime}
}

// Run executes a full experiment: advise resources from the runtime's
// device, split the dataset (persisting the label encoding into SaveDir),
// fine-tune, evaluate on validation, then take the single final pass over
// the held-out test set. The report is written into SaveDir and returned.
func (t *Trainer) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.ModelName == "" || opts.SaveDir == "" || opts.DataCSV == "" {
		return Report{}, fmt.Errorf("model name, save dir and data csv are required")
	}

	info, err := t.runtime.Info(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to query model runtime: %w", err)
	}
	plan := device.Advise(device.ClassFromString(info.Device),
		opts.TrainBatchSize, opts.EvalBatchSize, opts.GradAccumulationSteps)
	log.Printf("Run: model=%s device=%s trainBatch=%d evalBatch=%d gradAccum=%d fp16=%t",
		opts.ModelName, info.Device, plan.TrainBatch, plan.EvalBatch, plan.GradAccumulation, plan.ReducedPrecision)

	if err := os.MkdirAll(opts.SaveDir, 0755); err != nil {
		return Report{}, fmt.Errorf("failed to create save dir: %w", err)
	}

	splits, enc, err := split.LoadAndPrepare(opts.DataCSV, opts.SaveDir, opts.Split)
	if err != nil {
		return Report{}, fmt.Errorf("failed to prepare dataset: %w", err)
	}

	hp := mlruntime.Hyperparameters{
		LearningRate:          opts.LearningRate,
		Epochs:                opts.Epochs,
		TrainBatchSize:        plan.TrainBatch,
		EvalBatchSize:         plan.EvalBatch,
		GradAccumulationSteps: plan.GradAccumulation,
		WeightDecay:           opts.WeightDecay,
		WarmupSteps:           opts.WarmupSteps,
		Dropout:               opts.Dropout,
		EarlyStoppingPatience: opts.EarlyStoppingPatience,
		FP16:                  plan.ReducedPrecision,
	}

	trainRes, err := t.runtime.Train(ctx, mlruntime.TrainRequest{
		ModelName:       opts.ModelName,
		OutputDir:       opts.SaveDir,
		NumLabels:       enc.Len(),
		Hyperparameters: hp,
		Tokenization:    mlruntime.Tokenization{MaxLength: tokenMaxLength, BatchSize: tokenizerBatchSize},
		Train:           toExamples(splits.Train),
		Validation:      toExamples(splits.Validation),
	})
	if err != nil {
		return Report{}, fmt.Errorf("training failed: %w", err)
	}
	log.Printf("Run: model=%s trained loss=%.4f runtime=%.1fs", opts.ModelName, trainRes.FinalLoss, trainRes.RuntimeSeconds)

	valMetrics, err := t.runtime.Evaluate(ctx, mlruntime.EvalRequest{
		ModelDir:      opts.SaveDir,
		EvalBatchSize: plan.EvalBatch,
		Examples:      toExamples(splits.Validation),
	})
	if err != nil {
		return Report{}, fmt.Errorf("validation evaluation failed: %w", err)
	}

	testMetrics, err := t.runtime.Evaluate(ctx, mlruntime.EvalRequest{
		ModelDir:      opts.SaveDir,
		EvalBatchSize: plan.EvalBatch,
		Examples:      toExamples(splits.Test),
	})
	if err != nil {
		return Report{}, fmt.Errorf("test evaluation failed: %w", err)
	}
	log.Printf("Run: model=%s validationF1=%.4f testF1=%.4f", opts.ModelName, valMetrics.F1, testMetrics.F1)

	report := Report{
		ExperimentID: newExperimentID(opts.ModelName),
		ModelType:    opts.ModelName,
		Hyperparameters: ReportHyperparams{
			LearningRate:          opts.LearningRate,
			Epochs:                opts.Epochs,
			TrainBatchSize:        plan.TrainBatch,
			EvalBatchSize:         plan.EvalBatch,
			GradAccumulationSteps: plan.GradAccumulation,
			WeightDecay:           opts.WeightDecay,
			WarmupSteps:           opts.WarmupSteps,
			Dropout:               opts.Dropout,
			Device:                info.Device,
			FP16Enabled:           plan.ReducedPrecision,
		},
		DatasetConfig: DatasetConfig{
			NumLabels:    enc.Len(),
			LabelClasses: enc.Classes(),
			SplittingStrategy: SplittingStrategy{
				TrainingCount:   len(splits.Train),
				ValidationCount: len(splits.Validation),
				TestCount:       len(splits.Test),
			},
		},
		Phases: Phases{
			Training: TrainingPhase{
				Status: "completed",
				Metrics: TrainingMetrics{
					FinalTrainingLoss:   trainRes.FinalLoss,
					TotalRuntimeSeconds: trainRes.RuntimeSeconds,
				},
			},
			Validation: ValidationPhase{
				Purpose: "Hyperparameter tuning and model selection",
				Metrics: ValidationMetrics{
					ValidationLoss:     valMetrics.Loss,
					ValidationF1:       valMetrics.F1,
					ValidationAccuracy: valMetrics.Accuracy,
				},
			},
			Testing: TestingPhase{
				Purpose: "Final unbiased evaluation on held-out data",
				Metrics: TestMetrics{
					TestLoss:      testMetrics.Loss,
					TestAccuracy:  testMetrics.Accuracy,
					TestF1:        testMetrics.F1,
					TestPrecision: testMetrics.Precision,
					TestRecall:    testMetrics.Recall,
				},
			},
		},
		GeneralEval: GeneralEvaluation{
			Summary: fmt.Sprintf("Model %s achieved %.2f%% accuracy and %.4f F1 on the held-out test set.",
				opts.ModelName, testMetrics.Accuracy*100, testMetrics.F1),
			DeploymentDecision: decide(testMetrics.F1),
		},
	}

	if err := WriteReport(opts.SaveDir, report); err != nil {
		return Report{}, err
	}
	log.Printf("Run: model=%s experiment=%s decision=%s", opts.ModelName, report.ExperimentID, report.GeneralEval.DeploymentDecision)
	return report, nil
}

// Evaluate scores an already-trained model directory on the test partition
// of a dataset, re-derived with the same split configuration used at
// training time.
func (t *Trainer) Evaluate(ctx context.Context, modelDir, dataCSV string, cfg split.Config) (mlruntime.Metrics, error) {
	enc, err := split.LoadLabelEncoding(modelDir)
	if err != nil {
		return mlruntime.Metrics{}, err
	}

	splits, fitted, err := split.LoadAndPrepare(dataCSV, "", cfg)
	if err != nil {
		return mlruntime.Metrics{}, fmt.Errorf("failed to prepare dataset: %w", err)
	}
	if fitted.Len() != enc.Len() {
		return mlruntime.Metrics{}, fmt.Errorf("dataset has %d classes but model %s was trained on %d", fitted.Len(), modelDir, enc.Len())
	}

	info, err := t.runtime.Info(ctx)
	if err != nil {
		return mlruntime.Metrics{}, fmt.Errorf("failed to query model runtime: %w", err)
	}
	plan := device.Advise(device.ClassFromString(info.Device), 0, 0, 0)

	metrics, err := t.runtime.Evaluate(ctx, mlruntime.EvalRequest{
		ModelDir:      modelDir,
		EvalBatchSize: plan.EvalBatch,
		Examples:      toExamples(splits.Test),
	})
	if err != nil {
		return mlruntime.Metrics{}, fmt.Errorf("evaluation failed: %w", err)
	}
	log.Printf("Evaluate: modelDir=%s examples=%d f1=%.4f accuracy=%.4f", modelDir, len(splits.Test), metrics.F1, metrics.Accuracy)
	return metrics, nil
}

func toExamples(rows []split.Row) []mlruntime.Example {
	out := make([]mlruntime.Example, len(rows))
	for i, r := range rows {
		out[i] = mlruntime.Example{Text: r.Text, Label: r.Label}
	}
	return out
}
