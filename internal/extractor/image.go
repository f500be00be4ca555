// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import "context"

// extractImage runs OCR directly on an image file.
func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	text, err := e.ocrFile(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Pages: 1, Method: "image-ocr"}, nil
}
