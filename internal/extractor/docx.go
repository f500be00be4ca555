// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractDOCX extracts the paragraph content of a DOCX file in document
// order. The raw content still carries WordprocessingML tags; the shared
// cleaning step strips them together with every other tag-like artifact.
func extractDOCX(path string) (Result, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open DOCX file: %w", err)
	}
	defer doc.Close()

	content := strings.TrimSpace(doc.Editable().GetContent())
	return Result{Text: content, Pages: 1, Method: "docx"}, nil
}
