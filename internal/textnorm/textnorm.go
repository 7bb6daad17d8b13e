// Package textnorm provides the NFC text normalization spec.md's
// ChatGPT and Gemini readiness evaluators require ("NFC-normalized
// concat of parts"). Nothing in the example pack implements Unicode
// normalization, so this uses the standard ecosystem library for it
// rather than a hand-rolled approximation (SPEC_FULL.md §11).
package textnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NFC returns s normalized to Unicode NFC form.
func NFC(s string) string {
	return norm.NFC.String(s)
}

// NFCTrim normalizes s to NFC and trims surrounding whitespace, the
// exact predicate the Gemini/Grok readiness rule tests for emptiness.
func NFCTrim(s string) string {
	return strings.TrimSpace(NFC(s))
}
