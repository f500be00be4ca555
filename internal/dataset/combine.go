// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package dataset

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// CombinedName is the well-known filename of the single training input.
const CombinedName = "all_data.csv"

// Combine concatenates every per-source CSV in processedDir into the
// combined table, unless the combined file already exists — combining is
// idempotent and resumable. Finding no CSVs to combine is fatal: there is
// nothing to train on.
func Combine(processedDir string) (string, error) {
	combined := filepath.Join(processedDir, CombinedName)
	if _, err := os.Stat(combined); err == nil {
		log.Printf("Combine: using existing %s", combined)
		return combined, nil
	}

	matches, err := filepath.Glob(filepath.Join(processedDir, "*.csv"))
	if err != nil {
		return "", fmt.Errorf("failed to list CSVs in %s: %w", processedDir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no CSV files found in %s", processedDir)
	}
	sort.Strings(matches)

	var all []Record
	for _, path := range matches {
		records, err := ReadCSV(path)
		if err != nil {
			return "", err
		}
		all = append(all, records...)
	}

	if err := WriteCSV(combined, all); err != nil {
		return "", err
	}

	log.Printf("Combine: combined %d CSV files into %s rows=%d", len(matches), combined, len(all))
	return combined, nil
}
