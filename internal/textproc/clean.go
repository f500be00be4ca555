// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package textproc holds the single text-normalization routine shared by
// dataset construction and inference. Training and serving must clean text
// identically, so nothing else in the repository is allowed to implement
// its own variant.
package textproc

import (
	"regexp"
	"strings"
)

var (
	tagRE = regexp.MustCompile(`<[^>]+>`)
	// Runs of dots, underscores and dashes are fill-in lines from form
	// templates, not content.
	noiseRunRE   = regexp.MustCompile(`[._-]{3,}`)
	charsetRE    = regexp.MustCompile(`[^a-zA-Z0-9äöüÄÖÜß$€%.,\s-]`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Clean normalizes extracted document text: newlines become spaces, HTML-like
// tags and form-template noise runs are removed, the character set is
// restricted to alphanumerics, German letters, currency/percent symbols and
// basic punctuation, whitespace is collapsed, and the result is lowercased
// and trimmed.
//
// Clean is idempotent: Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = tagRE.ReplaceAllString(text, " ")
	text = noiseRunRE.ReplaceAllString(text, " ")
	text = charsetRE.ReplaceAllString(text, " ")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(strings.ToLower(text))
}
