// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package classify runs inference: text in, the trained model's label,
// label id and confidence out. The label mapping is always the one
// persisted beside the model weights; a missing or inconsistent mapping
// fails loudly rather than returning misnamed predictions.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/schriftgut/internal/extractor"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/split"
	"github.com/schriftgut/internal/textproc"
)

// ErrLabelMappingMismatch means the persisted label classes disagree with
// the model's output dimension. Predictions from such a pairing would
// carry wrong label names, so nothing is returned.
var ErrLabelMappingMismatch = errors.New("label mapping does not match model outputs")

// Prediction is one classification outcome.
type Prediction struct {
	Label      string  `json:"label"`
	LabelID    int     `json:"label_id"`
	Confidence float64 `json:"confidence"`
}

// Classifier serves predictions from one trained model directory.
type Classifier struct {
	modelDir  string
	enc       split.LabelEncoding
	runtime   mlruntime.Runtime
	extractor *extractor.Extractor
}

// Load binds a model directory to its persisted label mapping. When the
// runtime reports the model's output dimension, the mapping length is
// checked against it up front.
func Load(ctx context.Context, runtime mlruntime.Runtime, ext *extractor.Extractor, modelDir string) (*Classifier, error) {
	enc, err := split.LoadLabelEncoding(modelDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Load: modelDir=%s classes=%d", modelDir, enc.Len())
	return &Classifier{modelDir: modelDir, enc: enc, runtime: runtime, extractor: ext}, nil
}

// Predict classifies one raw text. The text goes through the same cleaning
// as training data, so raw and pre-cleaned input predict identically.
func (c *Classifier) Predict(ctx context.Context, text string) (Prediction, error) {
	cleaned := textproc.Clean(text)
	if cleaned == "" {
		return Prediction{}, fmt.Errorf("no usable text to classify")
	}

	res, err := c.runtime.Predict(ctx, mlruntime.PredictRequest{ModelDir: c.modelDir, Text: cleaned})
	if err != nil {
		return Prediction{}, fmt.Errorf("prediction failed: %w", err)
	}
	if len(res.Probabilities) != c.enc.Len() {
		return Prediction{}, fmt.Errorf("%w: model returned %d probabilities for %d classes",
			ErrLabelMappingMismatch, len(res.Probabilities), c.enc.Len())
	}

	best := 0
	for i, p := range res.Probabilities {
		if p > res.Probabilities[best] {
			best = i
		}
	}
	label, err := c.enc.Decode(best)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: label, LabelID: best, Confidence: res.Probabilities[best]}, nil
}

// PredictFile extracts text from a document and classifies it.
func (c *Classifier) PredictFile(ctx context.Context, path string) (Prediction, error) {
	if c.extractor == nil {
		return Prediction{}, fmt.Errorf("no extractor configured for file input")
	}
	res, err := c.extractor.Extract(ctx, path)
	if err != nil {
		return Prediction{}, err
	}
	if res.Empty() {
		return Prediction{}, fmt.Errorf("no text could be extracted from %s", path)
	}
	return c.Predict(ctx, res.Text)
}

// Classes returns the label names in id order.
func (c *Classifier) Classes() []string {
	return c.enc.Classes()
}
