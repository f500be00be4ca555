// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package extractor normalizes heterogeneous document formats into plain
// text. PDF pages without an embedded text layer and image files go through
// an OCR fallback; per-page and per-item failures degrade to partial or
// empty text instead of aborting the document.
package extractor

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Config controls the OCR toolchain used for image content.
type Config struct {
	TesseractBin string // binary name or absolute path; empty means "tesseract"
	Language     string // OCR language model; empty means "deu"
	TessdataDir  string // optional --tessdata-dir override
	DPI          int    // rasterization DPI for scanned PDF pages; 0 means 300
}

// Result is the outcome of extracting one document. An empty Text with a nil
// error is a valid, low-value result; callers that need to aggregate batches
// can branch on Empty() and Warnings without intercepting errors.
type Result struct {
	Text     string
	Pages    int
	Method   string // "pdf-text" | "pdf-ocr" | "image-ocr" | "text" | "docx" | "html" | "xlsx" | "eml"
	Warnings []string
}

// Empty reports whether extraction produced no usable text.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// UnsupportedFormatError is returned when the detected MIME type has no
// extraction path. It is always fatal for the single request; the extractor
// never guesses a format.
type UnsupportedFormatError struct {
	Path     string
	MimeType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q: %s", e.MimeType, e.Path)
}

// Extractor routes files to format-specific extraction based on MIME type.
type Extractor struct {
	cfg    Config
	runner Runner
}

// New creates an Extractor with defaults filled in.
func New(cfg Config) *Extractor {
	if cfg.TesseractBin == "" {
		cfg.TesseractBin = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "deu"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}}
}

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeEML  = "message/rfc822"
)

// DetectMime maps a file path to a MIME type by extension. An empty string
// means the type is not recognized.
func DetectMime(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return mimePDF
	case ".txt", ".md":
		return "text/plain"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".docx":
		return mimeDOCX
	case ".xlsx":
		return mimeXLSX
	case ".html", ".htm":
		return "text/html"
	case ".eml":
		return mimeEML
	}
	return mime.TypeByExtension(ext)
}

// IsSupported checks whether a file extension has an extraction path.
func IsSupported(path string) bool {
	switch DetectMime(path) {
	case mimePDF, mimeDOCX, mimeXLSX, mimeEML, "text/plain", "text/html",
		"image/png", "image/jpeg", "image/tiff", "image/bmp":
		return true
	}
	return false
}

// IsTemporaryFile checks if a file is an editor/OS temporary file (e.g. ~$doc.docx)
func IsTemporaryFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return true
	}
	if strings.HasPrefix(base, "._") {
		return true
	}
	return strings.HasSuffix(base, ".tmp")
}

// Extract produces raw text for one document. Callers clean the text with
// textproc.Clean before any downstream use. Unsupported types fail with
// *UnsupportedFormatError; unreadable files fail fast.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		return Result{}, fmt.Errorf("cannot access %s: %w", path, err)
	}

	mimeType := DetectMime(path)

	var res Result
	var err error
	switch {
	case mimeType == mimePDF:
		res, err = e.extractPDF(ctx, path)
	case strings.HasPrefix(mimeType, "image/"):
		res, err = e.extractImage(ctx, path)
	case mimeType == "text/html":
		res, err = extractHTML(path)
	case strings.HasPrefix(mimeType, "text/"):
		res, err = extractText(path)
	case mimeType == mimeDOCX:
		res, err = extractDOCX(path)
	case mimeType == mimeXLSX:
		res, err = extractExcel(path)
	case mimeType == mimeEML:
		res, err = extractEmail(path)
	default:
		return Result{}, &UnsupportedFormatError{Path: path, MimeType: mimeType}
	}
	if err != nil {
		return Result{}, err
	}

	log.Printf("Extract: path=%s method=%s chars=%d warnings=%d", path, res.Method, len(res.Text), len(res.Warnings))
	return res, nil
}
