package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Normalize folds case, replaces punctuation with spaces and collapses whitespace.
func Normalize(text string) string {
	folded := cases.Fold().String(text)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words returns the normalized words of text.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}

func significant(words []string, minLen int) []string {
	var out []string
	for _, w := range words {
		if len([]rune(w)) >= minLen {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return words
	}
	return out
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments must already be normalized.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
