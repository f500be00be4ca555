// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/schriftgut/internal/extractor"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "invoices", "r1.txt"), "Rechnung Nr. 1001, Betrag 500€")
	writeFile(t, filepath.Join(root, "invoices", "r2.txt"), "Rechnung Nr. 1002, Betrag 99€")
	writeFile(t, filepath.Join(root, "invoices", "notes.docx"), "ignored, not pdf/txt")
	writeFile(t, filepath.Join(root, "contracts", "v1.txt"), "Vertrag über Dienstleistungen")
	writeFile(t, filepath.Join(root, "contracts", "leer.txt"), "   \n  ")

	outCSV := filepath.Join(t.TempDir(), "raw_data.csv")
	labelMap := map[string]string{
		"invoices":  "invoice",
		"contracts": "contract",
		"orders":    "order", // folder absent: must be skipped, not fatal
	}

	b := NewBuilder(extractor.New(extractor.Config{}))
	records, err := b.Build(context.Background(), root, outCSV, labelMap)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records (empty text dropped), got %d", len(records))
	}

	counts := map[string]int{}
	for _, r := range records {
		counts[r.Label]++
		if r.Text == "" {
			t.Errorf("record %s has empty text", r.Filename)
		}
		if r.Text != "" && r.Text != textLower(r.Text) {
			t.Errorf("record %s text not cleaned: %q", r.Filename, r.Text)
		}
	}
	if counts["invoice"] != 2 || counts["contract"] != 1 {
		t.Errorf("unexpected label distribution: %v", counts)
	}

	loaded, err := ReadCSV(outCSV)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(loaded) != len(records) {
		t.Errorf("CSV rows = %d, want %d", len(loaded), len(records))
	}
}

func textLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func TestBuild_NoDocumentsIsNilNotError(t *testing.T) {
	b := NewBuilder(extractor.New(extractor.Config{}))
	records, err := b.Build(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "out.csv"), map[string]string{"invoices": "invoice"})
	if err != nil {
		t.Fatalf("missing folders must not be fatal, got %v", err)
	}
	if records != nil {
		t.Errorf("expected nil table for empty corpus, got %d records", len(records))
	}
}

func TestBuild_EmptyLabelMapIsError(t *testing.T) {
	b := NewBuilder(extractor.New(extractor.Config{}))
	if _, err := b.Build(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "out.csv"), nil); err == nil {
		t.Fatal("empty label map is a configuration error")
	}
}

func TestReadCSV_MissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	writeFile(t, path, "filename,content\nx.txt,hello\n")

	_, err := ReadCSV(path)
	missing, ok := err.(*MissingColumnsError)
	if !ok {
		t.Fatalf("expected *MissingColumnsError, got %v", err)
	}
	if len(missing.Columns) != 2 {
		t.Errorf("expected both text and label reported, got %v", missing.Columns)
	}
}

func TestCombine_Idempotent(t *testing.T) {
	dir := t.TempDir()
	if err := WriteCSV(filepath.Join(dir, "raw_data.csv"), []Record{{Filename: "a.txt", Text: "rechnung 1", Label: "invoice"}}); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(filepath.Join(dir, "synthetic_data.csv"), []Record{{Filename: "b.txt", Text: "vertrag 1", Label: "contract"}}); err != nil {
		t.Fatal(err)
	}

	combined, err := Combine(dir)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	first, err := os.Stat(combined)
	if err != nil {
		t.Fatal(err)
	}

	records, err := ReadCSV(combined)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("combined rows = %d, want 2", len(records))
	}

	// Second call must reuse the existing file without rewriting it.
	again, err := Combine(dir)
	if err != nil {
		t.Fatalf("second Combine failed: %v", err)
	}
	if again != combined {
		t.Errorf("combined path changed: %s vs %s", again, combined)
	}
	second, err := os.Stat(combined)
	if err != nil {
		t.Fatal(err)
	}
	if !second.ModTime().Equal(first.ModTime()) {
		t.Error("combined CSV was rewritten; mtime changed")
	}
}

func TestCombine_NoCSVsIsFatal(t *testing.T) {
	if _, err := Combine(t.TempDir()); err == nil {
		t.Fatal("expected fatal error when there is nothing to combine")
	}
}
