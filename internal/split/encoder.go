// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package split turns a dataset table into a deterministic, stratified,
// leak-free train/validation/test partition plus a persisted label encoding.
package split

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ClassesFileName is the flat class-name array stored beside model weights.
// The mapping used at inference must be the exact mapping fit at training
// time; loading it from the model directory is the only supported path.
const ClassesFileName = "label_classes.json"

// LabelEncoding is an immutable bijection between class-name strings and
// contiguous integer ids, ordered by sorted class name.
type LabelEncoding struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoding builds an encoding from a class list. Duplicates are
// collapsed and the id order is determined by sorted class names, so the
// same class set always yields the same encoding.
func NewLabelEncoding(classes []string) LabelEncoding {
	uniq := map[string]bool{}
	for _, c := range classes {
		uniq[c] = true
	}
	sorted := make([]string, 0, len(uniq))
	for c := range uniq {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	index := make(map[string]int, len(sorted))
	for i, c := range sorted {
		index[c] = i
	}
	return LabelEncoding{classes: sorted, index: index}
}

// Encode maps a class name to its id.
func (e LabelEncoding) Encode(label string) (int, error) {
	id, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	return id, nil
}

// Decode maps an id back to its class name.
func (e LabelEncoding) Decode(id int) (string, error) {
	if id < 0 || id >= len(e.classes) {
		return "", fmt.Errorf("label id %d out of range [0,%d)", id, len(e.classes))
	}
	return e.classes[id], nil
}

// Classes returns a copy of the class list in id order.
func (e LabelEncoding) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Len returns the number of classes.
func (e LabelEncoding) Len() int {
	return len(e.classes)
}

// Save persists the class array into dir as ClassesFileName.
func (e LabelEncoding) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(e.classes, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ClassesFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadLabelEncoding reads the persisted class array from a model directory.
// A missing file is an error, never an empty mapping.
func LoadLabelEncoding(modelDir string) (LabelEncoding, error) {
	path := filepath.Join(modelDir, ClassesFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return LabelEncoding{}, fmt.Errorf("label classes not found in %s: %w", modelDir, err)
	}
	var classes []string
	if err := json.Unmarshal(data, &classes); err != nil {
		return LabelEncoding{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(classes) == 0 {
		return LabelEncoding{}, fmt.Errorf("empty label class list in %s", path)
	}
	return NewLabelEncoding(classes), nil
}
