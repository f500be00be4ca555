// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// Runner lets tests stub the external tesseract binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		log.Printf("execRunner: cmd=%s args=%q error=%v stderr=%s", name, strings.Join(args, " "), err, truncate(errb.String(), 2048))
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// ocrFile runs tesseract on an image file with the configured language model.
// If the language model is unavailable it retries with tesseract's default
// model rather than failing.
func (e *Extractor) ocrFile(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, _, err := e.runner.Run(ctx, e.cfg.TesseractBin, args...)
	if err == nil {
		return string(out), nil
	}

	log.Printf("ocrFile: language=%s failed, retrying with default model: %v", e.cfg.Language, err)
	out, _, retryErr := e.runner.Run(ctx, e.cfg.TesseractBin, path, "stdout")
	if retryErr != nil {
		return "", fmt.Errorf("tesseract failed for %s: %w", path, err)
	}
	return string(out), nil
}
