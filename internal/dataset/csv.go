// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package dataset builds labeled (filename, text, label) tables from
// directory trees of documents and persists them as CSV.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Record is one row of a dataset table. Filename is informational only;
// Text is cleaned extracted text; Label is the class-name string.
type Record struct {
	Filename string
	Text     string
	Label    string
}

// MissingColumnsError reports a dataset CSV without the required columns.
// This is a configuration error and is never retried.
type MissingColumnsError struct {
	Path    string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns %v in %s", e.Columns, e.Path)
}

// WriteCSV persists records with the filename,text,label header.
func WriteCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"filename", "text", "label"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.Filename, r.Text, r.Label}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV loads a dataset table. The text and label columns are required;
// their absence is a *MissingColumnsError. Rows with a missing text or label
// cell are dropped here, mirroring the NaN handling of the split step.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty CSV: %s", path)
	}

	header := rows[0]
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}

	var missing []string
	for _, required := range []string{"text", "label"} {
		if _, ok := col[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Path: path, Columns: missing}
	}

	textIdx := col["text"]
	labelIdx := col["label"]
	fileIdx, hasFile := col["filename"]

	var records []Record
	for _, row := range rows[1:] {
		if textIdx >= len(row) || labelIdx >= len(row) {
			continue
		}
		rec := Record{Text: row[textIdx], Label: row[labelIdx]}
		if hasFile && fileIdx < len(row) {
			rec.Filename = row[fileIdx]
		}
		records = append(records, rec)
	}
	return records, nil
}
