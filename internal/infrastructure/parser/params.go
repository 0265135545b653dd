package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/doeshing/vocmd/internal/domain"
)

var (
	urlPattern     = regexp.MustCompile(`(?i)\b((?:[a-z][a-z0-9+.-]*://|www\.)\S+|(?:[a-z0-9-]+\.)+(?:com|org|net|io|dev|edu|gov|co|app|ai|me|info|uk|us|de)(?:/\S*)?)`)
	schemePattern  = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*):(\S)`)
	appPattern     = regexp.MustCompile(`(?i)\b(?:open|launch|start|run|close|quit|kill)\s+(?:the\s+)?(?:application\s+|app\s+|program\s+)?([a-z0-9][\w.-]*)`)
	extPattern     = regexp.MustCompile(`\.[A-Za-z0-9]{1,5}$`)
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	quotedValue    = regexp.MustCompile(`^(?:"([^"]*)"|'([^']*)')`)
	trailingPunct  = ",;!?"
	leadingFillers = map[string]bool{
		"a": true, "an": true, "the": true, "to": true, "for": true, "that": true,
		"about": true, "called": true, "named": true, "saying": true, "with": true,
		"please": true, "my": true, "of": true, "in": true, "on": true,
	}
	// app names that are really generic nouns from the pattern itself
	appStopwords = map[string]bool{
		"application": true, "app": true, "program": true, "the": true, "a": true,
		"browser": true, "file": true, "settings": true,
	}
	trueWords  = map[string]bool{"yes": true, "true": true, "on": true, "enable": true, "enabled": true, "y": true}
	falseWords = map[string]bool{"no": true, "false": true, "off": true, "disable": true, "disabled": true, "n": true}
)

func extractParameters(def domain.CommandDefinition, text, pattern string) map[string]interface{} {
	params := map[string]interface{}{}
	raw := strings.Join(strings.Fields(text), " ")
	residualUsed := false
	for _, spec := range def.Parameters {
		if v, ok := indicatorValue(raw, spec); ok {
			if coerced, ok := coerce(spec.Type, v); ok {
				params[spec.Name] = coerced
				continue
			}
		}
		if v, ok := heuristicValue(spec, raw, pattern, &residualUsed); ok {
			params[spec.Name] = v
			continue
		}
		if spec.Required {
			params[spec.Name] = fallbackValue(spec.Type)
		}
	}
	if def.Category == domain.CategoryTasks {
		enrichTask(def, raw, params)
	}
	return params
}

// indicatorValue looks for "name: v", "name = v", "name is v" and "with name v".
func indicatorValue(raw string, spec domain.ParamSpec) (string, bool) {
	names := []string{regexp.QuoteMeta(spec.Name)}
	if strings.Contains(spec.Name, "_") {
		names = append(names, regexp.QuoteMeta(strings.ReplaceAll(spec.Name, "_", " ")))
	}
	re := indicatorPattern(strings.Join(names, "|"))
	loc := re.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	rest := raw[loc[1]:]
	if rest == "" {
		return "", false
	}
	if m := quotedValue.FindStringSubmatch(rest); m != nil {
		if m[1] != "" {
			return m[1], true
		}
		return m[2], true
	}
	token := strings.Fields(rest)[0]
	token = strings.TrimRight(token, trailingPunct)
	return token, token != ""
}

var indicatorPatterns sync.Map

func indicatorPattern(alt string) *regexp.Regexp {
	if re, ok := indicatorPatterns.Load(alt); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)(?:\bwith\s+(?:` + alt + `)\s+|\b(?:` + alt + `)\s*(?::|=|\s+is\s+))\s*`)
	indicatorPatterns.Store(alt, re)
	return re
}

func coerce(t domain.ParamType, value string) (interface{}, bool) {
	switch t {
	case domain.ParamNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case domain.ParamBoolean:
		lower := strings.ToLower(value)
		if trueWords[lower] {
			return true, true
		}
		if falseWords[lower] {
			return false, true
		}
		return nil, false
	case domain.ParamURL:
		return withScheme(value), true
	default:
		return value, true
	}
}

func withScheme(value string) string {
	if hasScheme(value) {
		return value
	}
	return "https://" + value
}

// hasScheme reports whether value already names a scheme, hierarchical
// ("chrome://") or opaque ("mailto:"). "example.com:8080" and "localhost:3000"
// are hosts with ports.
func hasScheme(value string) bool {
	m := schemePattern.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	if strings.HasPrefix(value[len(m[1])+1:], "//") {
		return true
	}
	if len(m[1]) < 2 {
		return false
	}
	if m[2][0] >= '0' && m[2][0] <= '9' {
		return !strings.Contains(m[1], ".") && !strings.EqualFold(m[1], "localhost")
	}
	return true
}

func heuristicValue(spec domain.ParamSpec, raw, pattern string, residualUsed *bool) (interface{}, bool) {
	switch spec.Type {
	case domain.ParamURL:
		if m := urlPattern.FindString(raw); m != "" {
			return withScheme(strings.TrimRight(m, trailingPunct+".")), true
		}
	case domain.ParamApplicationName:
		for _, m := range appPattern.FindAllStringSubmatch(raw, -1) {
			if !appStopwords[strings.ToLower(m[1])] {
				return m[1], true
			}
		}
	case domain.ParamFilePath:
		if p := pathToken(raw); p != "" {
			return p, true
		}
	case domain.ParamNumber:
		if m := numberPattern.FindString(raw); m != "" {
			if n, err := strconv.ParseFloat(m, 64); err == nil {
				return n, true
			}
		}
	case domain.ParamBoolean:
		for _, w := range Words(raw) {
			if trueWords[w] {
				return true, true
			}
			if falseWords[w] {
				return false, true
			}
		}
	case domain.ParamString:
		if *residualUsed {
			return nil, false
		}
		if r := residual(raw, pattern); r != "" {
			*residualUsed = true
			return r, true
		}
	}
	return nil, false
}

// pathToken returns the first whitespace token that looks like a file path.
func pathToken(raw string) string {
	for _, tok := range strings.Fields(raw) {
		tok = strings.Trim(tok, `"'`+trailingPunct)
		switch {
		case strings.HasPrefix(tok, "/"), strings.HasPrefix(tok, "~/"), strings.HasPrefix(tok, "./"), strings.HasPrefix(tok, "../"):
			return tok
		case strings.Contains(tok, "/") && !strings.Contains(tok, "://"):
			return tok
		case extPattern.MatchString(tok) && !isNumeric(tok):
			return tok
		}
	}
	return ""
}

// residual is the input with the matched pattern's words removed and leading
// filler words stripped.
func residual(raw, pattern string) string {
	remaining := map[string]int{}
	for _, w := range Words(pattern) {
		remaining[w]++
	}
	var kept []string
	for _, tok := range strings.Fields(raw) {
		n := Normalize(tok)
		if remaining[n] > 0 {
			remaining[n]--
			continue
		}
		kept = append(kept, tok)
	}
	for len(kept) > 0 && leadingFillers[Normalize(kept[0])] {
		kept = kept[1:]
	}
	return strings.TrimRight(strings.Join(kept, " "), trailingPunct+".")
}

func isNumeric(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func fallbackValue(t domain.ParamType) interface{} {
	switch t {
	case domain.ParamNumber:
		return 0.0
	case domain.ParamBoolean:
		return false
	default:
		return ""
	}
}

// FormatValue renders a parameter value for messages and handler templates.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
