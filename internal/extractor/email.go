// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/mnako/letters"
)

// extractEmail extracts subject, sender and body text from an EML file.
// Payment reminders and complaints frequently arrive as exported mails.
func extractEmail(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open EML file: %w", err)
	}
	defer file.Close()

	email, err := letters.ParseEmail(file)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse EML file: %w", err)
	}

	var builder strings.Builder
	if email.Headers.Subject != "" {
		builder.WriteString(email.Headers.Subject)
		builder.WriteString("\n")
	}
	if len(email.Headers.From) > 0 {
		builder.WriteString(email.Headers.From[0].Address)
		builder.WriteString("\n")
	}

	// Prefer the text body; the HTML body's tags are removed by the shared
	// cleaning step.
	if email.Text != "" {
		builder.WriteString(email.Text)
	} else if email.HTML != "" {
		builder.WriteString(email.HTML)
	}

	return Result{Text: strings.TrimSpace(builder.String()), Pages: 1, Method: "eml"}, nil
}
