package security

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// dangerousValuePatterns flag destructive idioms inside parameter values.
// The list is a starting policy, not an exhaustive boundary.
var dangerousValuePatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)\brm\s+-[a-z]*[rf]`), "recursive or forced delete"},
	{regexp.MustCompile(`(?i)\bmkfs(?:\.\w+)?\b`), "filesystem format"},
	{regexp.MustCompile(`(?i)\bdd\s+if=`), "raw disk write"},
	{regexp.MustCompile(`(?i)\bformat\s+[a-z]:`), "disk format"},
	{regexp.MustCompile(`(?i)\bdel\s+/[sqf]\b`), "recursive delete"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};:`), "fork bomb"},
	{regexp.MustCompile(`(?i)>\s*/dev/(?:sd|nvme|disk)\w*`), "raw device write"},
	{regexp.MustCompile(`(?i)\bchmod\s+(?:-R\s+)?777\b`), "world-writable permissions"},
	{regexp.MustCompile(`(?i)(?:^|\s)(?:sudo|su)\s`), "privilege escalation"},
	{regexp.MustCompile(`[;&|]\s*(?:rm|curl|wget|sh|bash|zsh|python|nc)\b`), "chained shell command"},
	{regexp.MustCompile("\\$\\(|`"), "command substitution"},
	{regexp.MustCompile(`(?i)^\s*(?:javascript|data|vbscript):`), "script URI"},
}

var (
	hierarchicalScheme = regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*)://`)
	leadingScheme      = regexp.MustCompile(`(?i)^([a-z][a-z0-9+.-]*):(\S)`)
)

// protectedPathGlobs are system locations a parameter must not point into.
var protectedPathGlobs = []string{
	"/etc/**",
	"/bin/**",
	"/sbin/**",
	"/usr/bin/**",
	"/usr/sbin/**",
	"/usr/lib/**",
	"/boot/**",
	"/sys/**",
	"/proc/**",
	"/dev/**",
	"/var/lib/**",
	"/root/**",
	"/System/**",
	"/Library/**",
	"**/.ssh/**",
	"**/.gnupg/**",
	"**/.aws/credentials",
	"C:/Windows/**",
	"C:/Program Files/**",
}

// scanParameters returns a reason for every string parameter that looks dangerous,
// keyed by parameter name, in name order.
func scanParameters(params map[string]interface{}) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []string
	for _, name := range names {
		value, ok := params[name].(string)
		if !ok || value == "" {
			continue
		}
		if reason := dangerousValue(value); reason != "" {
			findings = append(findings, name+": "+reason)
		}
	}
	return findings
}

func dangerousValue(value string) string {
	for _, p := range dangerousValuePatterns {
		if p.re.MatchString(value) {
			return p.reason
		}
	}
	if scheme := foreignScheme(value); scheme != "" {
		return "non-http URI scheme " + scheme
	}
	for _, tok := range strings.Fields(value) {
		if path := protectedPath(tok); path != "" {
			return "system path " + path
		}
	}
	return ""
}

func protectedPath(token string) string {
	token = strings.Trim(token, `"'`)
	if token == "" {
		return ""
	}
	candidate := strings.ReplaceAll(filepath.ToSlash(token), `\`, "/")
	if len(candidate) >= 2 && candidate[1] == ':' {
		candidate = strings.ToUpper(candidate[:1]) + candidate[1:]
	}
	if !strings.HasPrefix(candidate, "/") && !strings.HasPrefix(candidate, "~/") && !(len(candidate) >= 2 && candidate[1] == ':') {
		return ""
	}
	cleaned := strings.TrimSuffix(candidate, "/")
	if cleaned == "" {
		return "/"
	}
	for _, glob := range protectedPathGlobs {
		if ok, _ := doublestar.Match(glob, cleaned); ok {
			return cleaned
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(glob, "/**"), cleaned); ok {
			return cleaned
		}
		if strings.HasPrefix(glob, "**/") {
			if ok, _ := doublestar.Match(glob, strings.TrimPrefix(cleaned, "/")); ok {
				return cleaned
			}
		}
	}
	return ""
}

// foreignScheme returns the first URI scheme in value other than http or https.
// A leading "host:port" or a drive letter is not a scheme.
func foreignScheme(value string) string {
	for _, m := range hierarchicalScheme.FindAllStringSubmatch(value, -1) {
		if scheme := strings.ToLower(m[1]); !webScheme(scheme) {
			return scheme
		}
	}
	m := leadingScheme.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ""
	}
	scheme := strings.ToLower(m[1])
	if webScheme(scheme) || len(scheme) < 2 {
		return ""
	}
	if m[2][0] >= '0' && m[2][0] <= '9' && (strings.Contains(scheme, ".") || scheme == "localhost") {
		return ""
	}
	return scheme
}

func webScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}
