// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schriftgut/internal/extractor"
	"github.com/schriftgut/internal/textproc"
)

// Builder turns a directory tree whose immediate subdirectories map to
// labels into a dataset table.
type Builder struct {
	extractor *extractor.Extractor
}

func NewBuilder(e *extractor.Extractor) *Builder {
	return &Builder{extractor: e}
}

// Build walks each configured folder under inputDir, extracts and cleans
// every PDF/TXT file, and writes the resulting table to outputCSV.
//
// A missing folder is logged and skipped (partial corpora are fine); a file
// whose cleaned text is empty carries no training signal and is dropped.
// When no documents are extracted at all, Build returns (nil, nil) so the
// caller can tell "no data" apart from a configuration error. An empty
// label-folder mapping is a configuration error.
func (b *Builder) Build(ctx context.Context, inputDir, outputCSV string, labelMap map[string]string) ([]Record, error) {
	if len(labelMap) == 0 {
		return nil, errors.New("empty label-folder mapping")
	}
	if err := os.MkdirAll(filepath.Dir(outputCSV), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	log.Printf("Build: starting dataset processing inputDir=%s", inputDir)

	folders := make([]string, 0, len(labelMap))
	for folder := range labelMap {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	var records []Record
	for _, folder := range folders {
		label := labelMap[folder]
		folderPath := filepath.Join(inputDir, folder)

		info, err := os.Stat(folderPath)
		if err != nil || !info.IsDir() {
			log.Printf("Build: missing directory %s, skipping", folderPath)
			continue
		}

		log.Printf("Build: processing folder=%s label=%s", folder, label)

		entries, err := os.ReadDir(folderPath)
		if err != nil {
			log.Printf("Build: cannot read %s: %v, skipping", folderPath, err)
			continue
		}

		var files []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext == ".pdf" || ext == ".txt" {
				files = append(files, entry.Name())
			}
		}

		for idx, name := range files {
			res, err := b.extractor.Extract(ctx, filepath.Join(folderPath, name))
			if err != nil {
				log.Printf("Build: extraction failed file=%s: %v", name, err)
				continue
			}

			cleaned := textproc.Clean(res.Text)
			if cleaned != "" {
				records = append(records, Record{Filename: name, Text: cleaned, Label: label})
			}

			if (idx+1)%10 == 0 || idx+1 == len(files) {
				log.Printf("Build: folder=%s processed %d/%d files", folder, idx+1, len(files))
			}
		}
	}

	if len(records) == 0 {
		log.Printf("Build: no documents extracted from %s", inputDir)
		return nil, nil
	}

	if err := WriteCSV(outputCSV, records); err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, r := range records {
		counts[r.Label]++
	}
	log.Printf("Build: completed documents=%d output=%s distribution=%v", len(records), outputCSV, counts)

	return records, nil
}
