// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"os"
	"unicode/utf8"
)

// extractText reads a plain text file as UTF-8, falling back to a Latin-1
// decode when the bytes are not valid UTF-8. Scanned German corpora still
// contain ISO 8859-1 exports, so an undecodable file is degraded, not fatal.
func extractText(path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read text file: %w", err)
	}

	if utf8.Valid(content) {
		return Result{Text: string(content), Pages: 1, Method: "text"}, nil
	}

	return Result{
		Text:     decodeLatin1(content),
		Pages:    1,
		Method:   "text",
		Warnings: []string{"not valid UTF-8, decoded as Latin-1"},
	}, nil
}

func decodeLatin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
