// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// extractPDF extracts text from a PDF using go-fitz (MuPDF).
// Priority per page:
//  1. the embedded text layer (fast, accurate);
//  2. OCR on a 300 DPI rasterization when the page has no text layer,
//     which covers scanned/image-only pages.
//
// A failure on a single page is logged and skipped; the remaining pages are
// still extracted.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	var warnings []string
	numPages := doc.NumPage()
	ocrPages := 0

	for i := 0; i < numPages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			log.Printf("extractPDF: path=%s page=%d text extraction failed: %v", path, i, err)
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}

		if strings.TrimSpace(pageText) != "" {
			textBuilder.WriteString(pageText)
			continue
		}

		// No text layer on this page: rasterize and OCR.
		ocrText, err := e.ocrPage(ctx, doc, i)
		if err != nil {
			log.Printf("extractPDF: path=%s page=%d OCR failed: %v", path, i, err)
			warnings = append(warnings, fmt.Sprintf("page %d OCR: %v", i, err))
			continue
		}
		textBuilder.WriteString(ocrText)
		ocrPages++
	}

	method := "pdf-text"
	if ocrPages > 0 {
		method = "pdf-ocr"
	}

	return Result{
		Text:     textBuilder.String(),
		Pages:    numPages,
		Method:   method,
		Warnings: warnings,
	}, nil
}

// ocrPage renders one PDF page to a PNG at the configured DPI and runs OCR
// on it. The temporary render is removed on every exit path.
func (e *Extractor) ocrPage(ctx context.Context, doc *fitz.Document, page int) (string, error) {
	img, err := doc.ImageDPI(page, float64(e.cfg.DPI))
	if err != nil {
		return "", fmt.Errorf("failed to rasterize page %d: %w", page, err)
	}

	tmpDir, err := os.MkdirTemp("", "schriftgut-ocr-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pngPath := filepath.Join(tmpDir, fmt.Sprintf("page_%d.png", page))
	f, err := os.Create(pngPath)
	if err != nil {
		return "", fmt.Errorf("failed to create page render: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode page render: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return e.ocrFile(ctx, pngPath)
}
