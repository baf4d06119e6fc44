// Package fingerprint computes content-based identity hashes for IVR prompt
// transcripts. Two prompts fingerprint identically iff their text matches
// exactly after normalization — strict equality, not fuzzy similarity, which
// is what makes loop detection reliable.
package fingerprint

import (
	"fmt"
	"strings"
	"unicode"
)

// Empty is the sentinel returned when the normalized text is empty.
const Empty = "empty"

// version prefixes the rendered hash so the scheme can change without
// breaking stored data; a mismatch is a cache miss, never a correctness bug.
const version = "v1"

// Fingerprint returns a stable versioned hash of the prompt text.
func Fingerprint(text string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return Empty
	}

	var h int32
	for _, c := range normalized {
		h = h*31 - h + int32(c)
	}
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("%s:%x", version, h)
}

// Normalize lowercases the text and strips everything but letters and digits.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, c := range strings.ToLower(text) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
