package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	linkPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	mentionPattern = regexp.MustCompile(`(?:^|\s)@\w+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Clean normalizes content for processing: NFKC normalization, link and
// mention removal, case folding, control character removal, and whitespace
// collapsing. It returns "" when nothing meaningful remains.
func Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	normalized := norm.NFKC.String(text)
	normalized = linkPattern.ReplaceAllString(normalized, " ")
	normalized = mentionPattern.ReplaceAllString(normalized, " ")
	normalized = cases.Fold().String(normalized)
	normalized = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, normalized)
	normalized = strings.TrimSpace(spacePattern.ReplaceAllString(normalized, " "))
	if !strings.ContainsFunc(normalized, isWordRune) {
		return ""
	}
	return normalized
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
