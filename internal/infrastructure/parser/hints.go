package parser

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

const maxDidYouMean = 3

var categoryHints = []struct {
	words []string
	hint  string
}{
	{[]string{"task", "tasks", "todo", "remind"}, "I can help you manage tasks. Try saying 'create a task to [description]' or 'show my tasks'."},
	{[]string{"file", "files", "document", "open", "read"}, "I can help with file operations. Try saying 'open file [name]' or 'read file [document]'."},
	{[]string{"browser", "web", "search", "google"}, "I can help with web browsing. Try saying 'go to [website]' or 'search for [topic]'."},
}

const genericHint = "I can help with tasks, files, browsing, and applications. Try being more specific!"

// Hints returns guidance for input the parser could not understand: a
// category-specific tip followed by up to three "did you mean" phrases.
func (p *Parser) Hints(text string) []string {
	words := wordSet(Words(text))
	hints := []string{genericHint}
	for _, ch := range categoryHints {
		if anyWord(words, ch.words) {
			hints[0] = ch.hint
			break
		}
	}
	for _, name := range p.didYouMean(text) {
		hints = append(hints, fmt.Sprintf("Did you mean %q?", name))
	}
	return hints
}

func (p *Parser) didYouMean(text string) []string {
	if p == nil || p.catalog == nil {
		return nil
	}
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	var phrases []string
	for _, def := range p.catalog.List() {
		phrases = append(phrases, def.Patterns...)
	}

	seen := map[string]bool{}
	var out []string
	add := func(matches fuzzy.Matches) {
		for _, m := range matches {
			phrase := phrases[m.Index]
			if seen[phrase] {
				continue
			}
			seen[phrase] = true
			out = append(out, phrase)
			if len(out) == maxDidYouMean {
				return
			}
		}
	}

	add(fuzzy.Find(normalized, phrases))
	if len(out) < maxDidYouMean {
		for _, w := range strings.Fields(normalized) {
			if len(w) < 4 {
				continue
			}
			add(fuzzy.Find(w, phrases))
			if len(out) == maxDidYouMean {
				break
			}
		}
	}
	return out
}

func anyWord(set map[string]bool, words []string) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}
