// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package mlruntime is the client for the model runtime service: the opaque
// transformer capability that fine-tunes, evaluates and predicts against
// model directories on the shared filesystem. Tokenization, the training
// loop, early stopping and metric computation live behind this boundary;
// everything in this repository depends on the Runtime interface, not on
// the HTTP client.
package mlruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Runtime is the contract the rest of the pipeline consumes.
type Runtime interface {
	// Info reports the runtime's compute device and tokenizer limits.
	Info(ctx context.Context) (Info, error)
	// Train fine-tunes a pretrained model into the request's output
	// directory. It blocks until training completes.
	Train(ctx context.Context, req TrainRequest) (TrainResult, error)
	// Evaluate scores a model directory on a labeled example set.
	Evaluate(ctx context.Context, req EvalRequest) (Metrics, error)
	// Predict returns the softmax probability vector for one text.
	Predict(ctx context.Context, req PredictRequest) (PredictResult, error)
}

// Info describes the runtime environment.
type Info struct {
	Device    string `json:"device"` // "cuda", "mps" or "cpu"
	MaxLength int    `json:"max_length"`
}

// Example is one (text, encoded label) pair.
type Example struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
}

// Hyperparameters is the training recipe handed to the runtime.
type Hyperparameters struct {
	LearningRate          float64  `json:"learning_rate"`
	Epochs                int      `json:"epochs"`
	TrainBatchSize        int      `json:"train_batch_size"`
	EvalBatchSize         int      `json:"eval_batch_size"`
	GradAccumulationSteps int      `json:"gradient_accumulation_steps"`
	WeightDecay           float64  `json:"weight_decay"`
	WarmupSteps           int      `json:"warmup_steps"`
	Dropout               *float64 `json:"dropout,omitempty"` // nil keeps the pretrained defaults
	EarlyStoppingPatience int      `json:"early_stopping_patience"`
	FP16                  bool     `json:"fp16"`
}

// Tokenization bounds tokenizer throughput and truncation.
type Tokenization struct {
	MaxLength int `json:"max_length"`
	BatchSize int `json:"batch_size"`
}

// TrainRequest carries one fine-tuning run. The runtime checkpoints on best
// validation F1, applies early stopping with the given patience, reloads the
// best checkpoint and persists model + tokenizer into OutputDir before
// returning.
type TrainRequest struct {
	ModelName       string          `json:"model_name"`
	OutputDir       string          `json:"output_dir"`
	NumLabels       int             `json:"num_labels"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Tokenization    Tokenization    `json:"tokenization"`
	Train           []Example       `json:"train"`
	Validation      []Example       `json:"validation"`
}

// TrainResult is the training-phase summary.
type TrainResult struct {
	FinalLoss      float64 `json:"final_training_loss"`
	RuntimeSeconds float64 `json:"total_runtime_seconds"`
}

// Metrics is a weighted evaluation summary over one example set.
type Metrics struct {
	Loss      float64 `json:"loss"`
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// EvalRequest scores the model saved in ModelDir.
type EvalRequest struct {
	ModelDir      string    `json:"model_dir"`
	EvalBatchSize int       `json:"eval_batch_size"`
	Examples      []Example `json:"examples"`
}

// PredictRequest asks for class probabilities for one already-cleaned text.
type PredictRequest struct {
	ModelDir string `json:"model_dir"`
	Text     string `json:"text"`
}

// PredictResult carries the softmax vector, indexed by label id.
type PredictResult struct {
	Probabilities []float64 `json:"probabilities"`
}

// Client talks to the model runtime service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a runtime client. Training runs block for a long time,
// so the timeout applies per request and zero means no client-side timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var out Info
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/info", nil, &out)
	return out, err
}

func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	var out TrainResult
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/train", req, &out)
	return out, err
}

func (c *Client) Evaluate(ctx context.Context, req EvalRequest) (Metrics, error) {
	var out Metrics
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/evaluate", req, &out)
	return out, err
}

func (c *Client) Predict(ctx context.Context, req PredictRequest) (PredictResult, error) {
	var out PredictResult
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/predict", req, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach model runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model runtime returned status %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
