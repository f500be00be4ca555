// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubRunner fakes the tesseract binary.
type stubRunner struct {
	output   string
	failLang bool // fail any invocation that passes "-l"
	calls    [][]string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, args)
	for _, a := range args {
		if a == "-l" && s.failLang {
			return nil, []byte("Error opening data file deu.traineddata"), errors.New("exit status 1")
		}
	}
	return []byte(s.output), nil, nil
}

func newTestExtractor(r Runner) *Extractor {
	e := New(Config{})
	e.runner = r
	return e
}

func TestDetectMime(t *testing.T) {
	cases := map[string]string{
		"rechnung.pdf":    "application/pdf",
		"scan.PNG":        "image/png",
		"brief.txt":       "text/plain",
		"vertrag.docx":    mimeDOCX,
		"bestellung.xlsx": mimeXLSX,
		"mahnung.eml":     mimeEML,
		"seite.html":      "text/html",
	}
	for path, want := range cases {
		if got := DetectMime(path); got != want {
			t.Errorf("DetectMime(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsTemporaryFile(t *testing.T) {
	for _, path := range []string{"~$vertrag.docx", "._scan.pdf", "upload.tmp"} {
		if !IsTemporaryFile(path) {
			t.Errorf("IsTemporaryFile(%q) = false, want true", path)
		}
	}
	if IsTemporaryFile("rechnung.pdf") {
		t.Error("IsTemporaryFile(rechnung.pdf) = true, want false")
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archiv.xyz123")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(&stubRunner{})
	_, err := e.Extract(context.Background(), path)

	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected *UnsupportedFormatError, got %v", err)
	}
	if !strings.Contains(unsupported.Error(), path) {
		t.Errorf("error should name the offending file, got %q", unsupported.Error())
	}
}

func TestExtract_MissingFile(t *testing.T) {
	e := newTestExtractor(&stubRunner{})
	if _, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "fehlt.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractText_UTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.txt")
	content := "Sehr geehrte Damen und Herren, anbei die Rechnung über 500€."
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(&stubRunner{})
	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Text != content {
		t.Errorf("text mismatch: got %q", res.Text)
	}
	if res.Method != "text" {
		t.Errorf("method = %q, want text", res.Method)
	}
}

func TestExtractText_Latin1Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alt.txt")
	// "Gebühr" in ISO 8859-1: 0xFC is ü and invalid as a standalone UTF-8 byte.
	latin1 := []byte{'G', 'e', 'b', 0xFC, 'h', 'r'}
	if err := os.WriteFile(path, latin1, 0644); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(&stubRunner{})
	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Text != "Gebühr" {
		t.Errorf("latin-1 decode produced %q, want %q", res.Text, "Gebühr")
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a decode warning")
	}
}

func TestExtractImage_OCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(path, []byte("not a real png, runner is stubbed"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &stubRunner{output: "Rechnung Nr. 1001\n"}
	e := newTestExtractor(runner)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Method != "image-ocr" {
		t.Errorf("method = %q, want image-ocr", res.Method)
	}
	if !strings.Contains(res.Text, "Rechnung Nr. 1001") {
		t.Errorf("OCR text missing, got %q", res.Text)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 tesseract call, got %d", len(runner.calls))
	}
	if got := runner.calls[0]; got[2] != "-l" || got[3] != "deu" {
		t.Errorf("expected German language model in args, got %v", got)
	}
}

func TestOCRFile_DefaultLanguageFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(path, []byte("stub"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &stubRunner{output: "fallback text", failLang: true}
	e := newTestExtractor(runner)

	text, err := e.ocrFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ocrFile should degrade to the default model, got %v", err)
	}
	if text != "fallback text" {
		t.Errorf("text = %q, want fallback output", text)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected retry without -l, got %d calls", len(runner.calls))
	}
	for _, a := range runner.calls[1] {
		if a == "-l" {
			t.Error("retry call must not pass a language model")
		}
	}
}

func TestResult_Empty(t *testing.T) {
	if !(Result{Text: "  \n "}).Empty() {
		t.Error("whitespace-only result should be empty")
	}
	if (Result{Text: "rechnung"}).Empty() {
		t.Error("non-empty result reported empty")
	}
}

// writeMinimalPDF writes a one-page PDF whose content stream is given by
// body. MuPDF repairs the xref table if offsets drift, so the fixture only
// needs structurally valid objects.
func writeMinimalPDF(t *testing.T, path, body string) {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(body), body),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefStart := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractPDF_EmbeddedTextSkipsOCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digital.pdf")
	writeMinimalPDF(t, path, "BT /F1 12 Tf 72 720 Td (Rechnung Nr. 1001) Tj ET")

	runner := &stubRunner{output: "MUST NOT APPEAR"}
	e := newTestExtractor(runner)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(res.Text, "Rechnung Nr. 1001") {
		t.Errorf("embedded text missing, got %q", res.Text)
	}
	if res.Method != "pdf-text" {
		t.Errorf("method = %q, want pdf-text", res.Method)
	}
	if len(runner.calls) != 0 {
		t.Errorf("OCR must not run for pages with a text layer, got %d calls", len(runner.calls))
	}
}

func TestExtractPDF_EmptyPageUsesOCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	// A page with no text operators at all: the OCR fallback must fire.
	writeMinimalPDF(t, path, "")

	runner := &stubRunner{output: "Zahlungserinnerung 3. Mahnung"}
	e := newTestExtractor(runner)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Method != "pdf-ocr" {
		t.Errorf("method = %q, want pdf-ocr", res.Method)
	}
	if !strings.Contains(res.Text, "Zahlungserinnerung") {
		t.Errorf("OCR text missing, got %q", res.Text)
	}
	if len(runner.calls) == 0 {
		t.Error("expected at least one OCR invocation")
	}
}
