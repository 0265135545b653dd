package security

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/vocmd/assets"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
)

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules []domain.PolicyRule `yaml:"rules"`
}

type compiledRule struct {
	rule     domain.PolicyRule
	patterns []*regexp.Regexp
}

// LoadRules reads policy rules from path, falling back to the embedded
// defaults when the file is missing or empty.
func LoadRules(path string) ([]domain.PolicyRule, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRules()
	}
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	rules, err := parseRules(data)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return DefaultRules()
	}
	return rules, nil
}

// DefaultRules returns the embedded starting policy.
func DefaultRules() ([]domain.PolicyRule, error) {
	return parseRules(assets.DefaultPolicyYAML)
}

func parseRules(data []byte) ([]domain.PolicyRule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return file.Rules, nil
}

func compileRule(rule domain.PolicyRule) (compiledRule, error) {
	if rule.ID == "" {
		return compiledRule{}, errors.New("policy rule id is required")
	}
	switch rule.Action {
	case domain.RuleBlock, domain.RuleWarn, domain.RuleRequireConfirmation:
	default:
		return compiledRule{}, fmt.Errorf("policy rule %q: unknown action %q", rule.ID, rule.Action)
	}
	if len(rule.Patterns) == 0 {
		return compiledRule{}, fmt.Errorf("policy rule %q: no patterns", rule.ID)
	}
	if rule.Severity.Rank() == 0 {
		rule.Severity = domain.RiskLow
	}
	compiled := compiledRule{rule: rule}
	for _, pattern := range rule.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("policy rule %q: %w", rule.ID, err)
		}
		compiled.patterns = append(compiled.patterns, re)
	}
	return compiled, nil
}

func (c compiledRule) matches(text string) bool {
	for _, re := range c.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
