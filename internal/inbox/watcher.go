// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package inbox watches hot folders for incoming documents and classifies
// each one as it settles, appending outcomes to a JSONL journal.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/schriftgut/internal/classify"
	"github.com/schriftgut/internal/extractor"
)

// Entry is one journal line: a classified (or failed) inbox document.
type Entry struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Label      string  `json:"label,omitempty"`
	LabelID    int     `json:"label_id"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// Watcher manages file watchers over inbox directories
type Watcher struct {
	watchPaths  []string
	journalPath string
	cache       *classify.Cache
	modelDir    string
	watchers    map[string]*fsnotify.Watcher
	debouncer   *Debouncer

	mu        sync.Mutex
	journalMu sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWatcher creates a watcher over the given inbox directories. Events
// settle for settleDelay before a document is processed.
func NewWatcher(watchPaths []string, cache *classify.Cache, modelDir, journalPath string, settleDelay time.Duration) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	if settleDelay <= 0 {
		settleDelay = 500 * time.Millisecond
	}
	return &Watcher{
		watchPaths:  watchPaths,
		journalPath: journalPath,
		cache:       cache,
		modelDir:    modelDir,
		watchers:    make(map[string]*fsnotify.Watcher),
		debouncer:   NewDebouncer(settleDelay, nil),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts watching all configured paths
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.debouncer.Callback = func(filePath string) {
		go w.ProcessFile(filePath)
	}

	for _, path := range w.watchPaths {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.watchers[path] = watcher
		log.Printf("Start: watching path=%s", path)
	}

	for path, watcher := range w.watchers {
		w.wg.Add(1)
		go w.processEvents(path, watcher)
	}
	return nil
}

// Stop stops all watchers and waits for in-flight processing goroutines.
func (w *Watcher) Stop() {
	w.cancel()
	w.debouncer.Stop()

	w.mu.Lock()
	for path, watcher := range w.watchers {
		if err := watcher.Close(); err != nil {
			log.Printf("Stop: error closing watcher for %s: %v", path, err)
		}
		delete(w.watchers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) processEvents(path string, watcher *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.debouncer.Trigger(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("processEvents: path=%s watcher error: %v", path, err)
		}
	}
}

// ProcessFile classifies one settled document and journals the outcome.
// Temporary files and unsupported types are skipped silently.
func (w *Watcher) ProcessFile(path string) {
	if extractor.IsTemporaryFile(path) {
		return
	}
	if !extractor.IsSupported(path) {
		log.Printf("ProcessFile: path=%s skipped unsupported type", path)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	entry := Entry{
		ID:        uuid.New().String(),
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	classifier, err := w.cache.Get(w.ctx, w.modelDir)
	if err != nil {
		entry.Error = err.Error()
	} else {
		pred, err := classifier.PredictFile(w.ctx, path)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Label = pred.Label
			entry.LabelID = pred.LabelID
			entry.Confidence = pred.Confidence
		}
	}

	if entry.Error != "" {
		log.Printf("ProcessFile: path=%s err=%s", path, entry.Error)
	} else {
		log.Printf("ProcessFile: path=%s label=%s confidence=%.3f", path, entry.Label, entry.Confidence)
	}

	if err := w.appendJournal(entry); err != nil {
		log.Printf("ProcessFile: failed to journal %s: %v", path, err)
	}
}

func (w *Watcher) appendJournal(entry Entry) error {
	w.journalMu.Lock()
	defer w.journalMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.journalPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(entry)
}
