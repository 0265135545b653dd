package parser

import (
	"regexp"
	"strings"

	"github.com/doeshing/vocmd/internal/domain"
)

var timeReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:by|before|until)\s+(?:tomorrow|tonight|next\s+week|friday|monday|end\s+of\s+(?:day|week))\b`),
	regexp.MustCompile(`(?i)\b(?:in|within)\s+\d+\s+(?:hours?|days?|weeks?|months?)\b`),
	regexp.MustCompile(`(?i)\b(?:at|on)\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?\b`),
	regexp.MustCompile(`(?i)\b(?:today|tomorrow|tonight)\b`),
}

var (
	highPriorityWords = []string{"urgent", "asap", "immediately", "high priority"}
	lowPriorityWords  = []string{"low priority", "whenever", "someday", "low"}
)

// enrichTask fills priority and time_reference for task commands that declare them,
// and trims a detected time reference out of the description.
func enrichTask(def domain.CommandDefinition, raw string, params map[string]interface{}) {
	normalized := Normalize(raw)

	if _, ok := def.Param("time_reference"); ok {
		if _, set := params["time_reference"]; !set || params["time_reference"] == "" {
			for _, re := range timeReferencePatterns {
				if m := re.FindString(raw); m != "" {
					params["time_reference"] = strings.ToLower(m)
					trimFromDescription(params, m)
					break
				}
			}
		}
	}

	if _, ok := def.Param("priority"); ok {
		if _, set := params["priority"]; !set || params["priority"] == "" {
			params["priority"] = detectPriority(normalized)
		}
		for _, w := range highPriorityWords {
			trimFromDescription(params, w)
		}
		trimFromDescription(params, "low priority")
	}
}

func detectPriority(normalized string) string {
	for _, w := range highPriorityWords {
		if containsPhrase(normalized, w) {
			return "high"
		}
	}
	for _, w := range lowPriorityWords {
		if containsPhrase(normalized, w) {
			return "low"
		}
	}
	return "medium"
}

func trimFromDescription(params map[string]interface{}, fragment string) {
	desc, ok := params["description"].(string)
	if !ok || desc == "" {
		return
	}
	idx := strings.Index(strings.ToLower(desc), strings.ToLower(fragment))
	if idx < 0 {
		return
	}
	trimmed := strings.Join(strings.Fields(desc[:idx]+" "+desc[idx+len(fragment):]), " ")
	if trimmed != "" {
		params["description"] = trimmed
	}
}
