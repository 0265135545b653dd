// Package parser matches free text against the command catalog.
package parser

import (
	"math"
	"sort"
	"strings"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/ports"
)

const (
	patternWeight  = 0.6
	nameWeight     = 0.3
	synonymWeight  = 0.1
	candidateRatio = 0.5
)

// categorySynonyms are words that hint at a category without naming a command.
var categorySynonyms = map[domain.Category][]string{
	domain.CategoryBrowser:     {"browser", "chrome", "firefox", "safari", "tab", "website", "web"},
	domain.CategorySystem:      {"computer", "screen", "system", "volume", "machine"},
	domain.CategoryApplication: {"app", "application", "program", "apps"},
	domain.CategoryFilesystem:  {"file", "files", "folder", "directory", "document"},
	domain.CategoryWeb:         {"page", "button", "link", "form", "field"},
	domain.CategoryTasks:       {"task", "tasks", "todo", "reminder", "remind"},
	domain.CategoryChat:        {"chat", "message", "conversation"},
	domain.CategoryMedia:       {"music", "song", "track", "video", "playback"},
	domain.CategorySettings:    {"settings", "setting", "preferences", "option"},
}

// Candidate is one scored definition for an input.
type Candidate struct {
	Definition   domain.CommandDefinition
	Score        float64
	PatternRatio float64
	Pattern      string
	NameMatch    bool
	SynonymMatch bool
}

// Parser implements ports.CommandParser and ports.HintProvider.
type Parser struct {
	catalog ports.CommandCatalog
}

// New creates a parser over the catalog.
func New(catalog ports.CommandCatalog) *Parser {
	return &Parser{catalog: catalog}
}

// Parse returns the best scoring command for text, or false when nothing
// reaches the minimum confidence.
func (p *Parser) Parse(text string) (domain.ParsedCommand, bool) {
	candidates := p.Rank(text)
	if len(candidates) == 0 || candidates[0].Score < domain.MinParseConfidence {
		return domain.ParsedCommand{}, false
	}
	best := candidates[0]
	return domain.ParsedCommand{
		Definition: best.Definition,
		Parameters: extractParameters(best.Definition, text, best.Pattern),
		Confidence: best.Score,
		RawText:    text,
	}, true
}

// Rank scores every candidate definition for text, best first.
func (p *Parser) Rank(text string) []Candidate {
	if p == nil || p.catalog == nil {
		return nil
	}
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	input := wordSet(strings.Fields(normalized))

	var candidates []Candidate
	for _, def := range p.catalog.List() {
		ratio, pattern := bestPattern(def, input)
		if ratio < candidateRatio {
			continue
		}
		c := Candidate{
			Definition:   def,
			PatternRatio: ratio,
			Pattern:      pattern,
			NameMatch:    nameAppears(def, normalized),
			SynonymMatch: synonymAppears(def.Category, input),
		}
		c.Score = patternWeight * ratio
		if c.NameMatch {
			c.Score += nameWeight
		}
		if c.SynonymMatch {
			c.Score += synonymWeight
		}
		// weights sum to 1 only up to float error
		c.Score = math.Round(c.Score*1e9) / 1e9
		if c.Score > 1 {
			c.Score = 1
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func bestPattern(def domain.CommandDefinition, input map[string]bool) (float64, string) {
	best, bestPattern := 0.0, ""
	for _, pattern := range def.Patterns {
		words := significant(Words(pattern), domain.SignificantWordLength)
		if len(words) == 0 {
			continue
		}
		matched := 0
		for _, w := range words {
			if input[w] {
				matched++
			}
		}
		ratio := float64(matched) / float64(len(words))
		if ratio > best {
			best, bestPattern = ratio, pattern
		}
	}
	return best, bestPattern
}

func nameAppears(def domain.CommandDefinition, normalized string) bool {
	if containsPhrase(normalized, Normalize(def.Name)) {
		return true
	}
	return containsPhrase(normalized, Normalize(strings.ReplaceAll(def.ID, "_", " ")))
}

func synonymAppears(cat domain.Category, input map[string]bool) bool {
	for _, syn := range categorySynonyms[cat] {
		if input[syn] {
			return true
		}
	}
	return false
}
