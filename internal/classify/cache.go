// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package classify

import (
	"context"
	"sync"

	"github.com/schriftgut/internal/extractor"
	"github.com/schriftgut/internal/mlruntime"
)

// Cache loads each model directory once and hands out the shared
// Classifier on later requests. Safe for concurrent use by HTTP handlers.
type Cache struct {
	runtime   mlruntime.Runtime
	extractor *extractor.Extractor

	mu     sync.Mutex
	loaded map[string]*Classifier
}

func NewCache(runtime mlruntime.Runtime, ext *extractor.Extractor) *Cache {
	return &Cache{
		runtime:   runtime,
		extractor: ext,
		loaded:    make(map[string]*Classifier),
	}
}

// Get returns the classifier for a model directory, loading it on first use.
func (c *Cache) Get(ctx context.Context, modelDir string) (*Classifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.loaded[modelDir]; ok {
		return cl, nil
	}
	cl, err := Load(ctx, c.runtime, c.extractor, modelDir)
	if err != nil {
		return nil, err
	}
	c.loaded[modelDir] = cl
	return cl, nil
}
