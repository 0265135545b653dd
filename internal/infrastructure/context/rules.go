package contextdetect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/doeshing/vocmd/internal/domain"
)

// DefaultRules is the built-in detection rule set.
func DefaultRules() []domain.DetectionRule {
	route := func(id, prefix string, target domain.ContextType, confidence float64) domain.DetectionRule {
		return domain.DetectionRule{
			ID:         id,
			Priority:   100,
			Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpStartsWith, Value: prefix}},
			Target:     target,
			Confidence: confidence,
		}
	}
	element := func(id, needle string, target domain.ContextType, confidence float64) domain.DetectionRule {
		return domain.DetectionRule{
			ID:         id,
			Priority:   80,
			Conditions: []domain.Condition{{Signal: domain.SignalActiveElement, Operator: domain.OpContains, Value: needle}},
			Target:     target,
			Confidence: confidence,
		}
	}
	return []domain.DetectionRule{
		route("route-tasks", "/tasks", domain.ContextTasks, 0.9),
		route("route-chat", "/chat", domain.ContextChat, 0.9),
		route("route-settings", "/settings", domain.ContextSettings, 0.9),
		route("route-browser", "/browser", domain.ContextBrowser, 0.85),
		route("route-dashboard", "/dashboard", domain.ContextDashboard, 0.85),
		route("route-media", "/media", domain.ContextMedia, 0.85),
		{
			ID:         "route-dev",
			Priority:   100,
			Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpGlob, Value: "/dev/**"}},
			Target:     domain.ContextDevelopment,
			Confidence: 0.85,
		},
		{
			ID:         "route-home",
			Priority:   90,
			Conditions: []domain.Condition{{Signal: domain.SignalRoute, Operator: domain.OpEquals, Value: "/"}},
			Target:     domain.ContextDashboard,
			Confidence: 0.7,
		},
		element("element-editor", "editor", domain.ContextDevelopment, 0.8),
		element("element-terminal", "terminal", domain.ContextDevelopment, 0.8),
		element("element-video", "video", domain.ContextMedia, 0.8),
		element("element-chat", "chat", domain.ContextChat, 0.75),
		element("element-task", "task", domain.ContextTasks, 0.75),
		{
			ID:         "url-browsing",
			Priority:   50,
			Conditions: []domain.Condition{{Signal: domain.SignalURL, Operator: domain.OpRegex, Value: `^https?://`}},
			Target:     domain.ContextBrowser,
			Confidence: 0.6,
		},
		{
			ID:         "activity-coding",
			Priority:   60,
			Conditions: []domain.Condition{{Signal: domain.SignalActivity, Operator: domain.OpRegex, Value: `^(coding|development|debugging)$`}},
			Target:     domain.ContextDevelopment,
			Confidence: 0.7,
		},
		{
			ID:         "activity-listening",
			Priority:   60,
			Conditions: []domain.Condition{{Signal: domain.SignalActivity, Operator: domain.OpEquals, Value: "listening"}},
			Target:     domain.ContextMedia,
			Confidence: 0.7,
		},
		{
			ID:       "morning-planning",
			Priority: 10,
			Conditions: []domain.Condition{
				{Signal: domain.SignalTimeOfDay, Operator: domain.OpGreaterThan, Value: "4"},
				{Signal: domain.SignalTimeOfDay, Operator: domain.OpLessThan, Value: "12"},
			},
			Target:     domain.ContextDashboard,
			Confidence: 0.4,
		},
		{
			ID:         "evening-media",
			Priority:   10,
			Conditions: []domain.Condition{{Signal: domain.SignalTimeOfDay, Operator: domain.OpGreaterThan, Value: "19"}},
			Target:     domain.ContextMedia,
			Confidence: 0.4,
		},
	}
}

func validateRule(rule domain.DetectionRule) error {
	if rule.ID == "" {
		return fmt.Errorf("detection rule id is required")
	}
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("detection rule %q has no conditions", rule.ID)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("detection rule %q: confidence %v outside [0,1]", rule.ID, rule.Confidence)
	}
	for _, c := range rule.Conditions {
		switch c.Operator {
		case domain.OpEquals, domain.OpContains, domain.OpStartsWith, domain.OpExists:
		case domain.OpRegex:
			if _, err := regexp.Compile(c.Value); err != nil {
				return fmt.Errorf("detection rule %q: %w", rule.ID, err)
			}
		case domain.OpGreaterThan, domain.OpLessThan:
			if _, err := strconv.ParseFloat(c.Value, 64); err != nil {
				return fmt.Errorf("detection rule %q: %q is not a number", rule.ID, c.Value)
			}
		case domain.OpGlob:
			if !doublestar.ValidatePattern(c.Value) {
				return fmt.Errorf("detection rule %q: invalid glob %q", rule.ID, c.Value)
			}
		default:
			return fmt.Errorf("detection rule %q: unknown operator %q", rule.ID, c.Operator)
		}
	}
	return nil
}

// matcher evaluates conditions, caching compiled regular expressions.
type matcher struct {
	regexps sync.Map
}

func (m *matcher) all(conds []domain.Condition, env domain.Environment) bool {
	for _, c := range conds {
		if !m.match(c, env) {
			return false
		}
	}
	return true
}

func (m *matcher) match(c domain.Condition, env domain.Environment) bool {
	value, ok := env.Value(c.Signal)
	if c.Operator == domain.OpExists {
		return ok
	}
	if !ok {
		return false
	}
	switch c.Operator {
	case domain.OpEquals:
		return strings.EqualFold(value, c.Value)
	case domain.OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(c.Value))
	case domain.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(c.Value))
	case domain.OpRegex:
		re := m.regexp(c.Value)
		return re != nil && re.MatchString(value)
	case domain.OpGreaterThan, domain.OpLessThan:
		got, err1 := strconv.ParseFloat(value, 64)
		want, err2 := strconv.ParseFloat(c.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if c.Operator == domain.OpGreaterThan {
			return got > want
		}
		return got < want
	case domain.OpGlob:
		matched, err := doublestar.Match(c.Value, value)
		return err == nil && matched
	default:
		return false
	}
}

func (m *matcher) regexp(pattern string) *regexp.Regexp {
	if re, ok := m.regexps.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	m.regexps.Store(pattern, re)
	return re
}

func sourceFor(kind domain.SignalKind) domain.ContextSource {
	switch kind {
	case domain.SignalRoute, domain.SignalURL:
		return domain.SourceRoute
	case domain.SignalActiveElement:
		return domain.SourceActiveElement
	default:
		return domain.SourceActivity
	}
}
