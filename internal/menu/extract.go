// Package menu recovers navigable touch-tone choices from IVR prompt
// transcripts via pattern matching.
package menu

import (
	"regexp"
	"strings"

	"github.com/dialmap/dialmap/pkg/models"
)

// Extraction patterns compiled once at package init. Each captures a digit
// and a label in some order; which group is the digit is decided per match
// by testing which group is digits-only.
var (
	rePressFor   = regexp.MustCompile(`(?i)press\s+(\d)\s+(?:for|to)\s+([a-zA-Z][a-zA-Z '&-]*)`)
	reForPress   = regexp.MustCompile(`(?i)(?:for|to)\s+([a-zA-Z][a-zA-Z '&-]*?),?\s+press\s+(\d)`)
	reCommaPress = regexp.MustCompile(`(?i)([a-zA-Z][a-zA-Z '&-]*?),\s+press\s+(\d)`)

	reDigits = regexp.MustCompile(`^\d+$`)
)

var patterns = []*regexp.Regexp{rePressFor, reForPress, reCommaPress}

// inputHints flag prompts that demand free-form caller input (e.g. a PIN)
// rather than a menu choice.
var inputHints = []string{"enter", "pin"}

// ExtractOptions returns the {dtmf, label} pairs found in the transcript, in
// the order the patterns produce them. Duplicate digits across overlapping
// patterns are dropped; the first occurrence wins so pattern order still
// governs exploration order. A transcript with no matches yields an empty
// slice (leaf node).
func ExtractOptions(text string) []models.MenuOption {
	options := []models.MenuOption{}
	seen := map[string]bool{}

	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			digit, label := m[1], m[2]
			if !reDigits.MatchString(digit) {
				digit, label = label, digit
			}
			if !reDigits.MatchString(digit) || seen[digit] {
				continue
			}
			seen[digit] = true
			options = append(options, models.MenuOption{
				DTMF:  digit,
				Label: strings.TrimSpace(label),
			})
		}
	}

	return options
}

// NeedsHumanInput reports whether a prompt with no extractable options is
// asking the caller for a free-form value rather than ending the branch.
func NeedsHumanInput(text string) bool {
	lower := strings.ToLower(text)
	for _, hint := range inputHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
