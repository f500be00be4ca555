// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package device maps a detected compute device class to batch-size,
// gradient-accumulation and precision defaults for training.
package device

import "strings"

// Class is the broad compute device category reported by the model runtime.
type Class int

const (
	CPU Class = iota
	GPU
	Unified // unified-memory accelerator (e.g. Apple silicon)
)

func (c Class) String() string {
	switch c {
	case GPU:
		return "gpu"
	case Unified:
		return "unified"
	}
	return "cpu"
}

// ClassFromString maps runtime device names to a Class. CUDA devices are
// GPU-class, "mps" is unified-memory, anything else is treated as CPU.
func ClassFromString(device string) Class {
	switch {
	case strings.HasPrefix(device, "cuda"):
		return GPU
	case strings.HasPrefix(device, "mps"):
		return Unified
	}
	return CPU
}

// Plan is the resolved resource configuration for one training run.
type Plan struct {
	TrainBatch       int
	EvalBatch        int
	GradAccumulation int
	ReducedPrecision bool // fp16; only ever enabled on GPU-class devices
}

// Advise resolves batch sizes, gradient accumulation and precision for the
// device class. A zero user value means unset.
//
// Unified-memory accelerators do not reliably benefit from reduced precision
// and can train unstably with it; CPU-only execution gets small batches to
// bound memory and wall-clock time.
func Advise(class Class, userTrainBatch, userEvalBatch, userGradAccum int) Plan {
	if userTrainBatch <= 0 {
		switch class {
		case GPU:
			return Plan{TrainBatch: 4, EvalBatch: 8, GradAccumulation: 2, ReducedPrecision: true}
		case Unified:
			return Plan{TrainBatch: 4, EvalBatch: 4, GradAccumulation: 2, ReducedPrecision: false}
		default:
			return Plan{TrainBatch: 2, EvalBatch: 4, GradAccumulation: 4, ReducedPrecision: false}
		}
	}

	plan := Plan{
		TrainBatch:       userTrainBatch,
		EvalBatch:        userEvalBatch,
		GradAccumulation: userGradAccum,
		ReducedPrecision: class == GPU,
	}
	if plan.EvalBatch <= 0 {
		plan.EvalBatch = userTrainBatch * 2
	}
	if plan.GradAccumulation <= 0 {
		plan.GradAccumulation = 1
	}
	return plan
}
