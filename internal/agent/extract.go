package agent

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Section markers the extraction prompts ask the model to emit. The
// split helpers treat them as plain substrings and tolerate an optional
// trailing colon, since models emit both forms; a model that ignores the
// format entirely simply yields the documented defaults downstream.
const (
	markerFunctional    = "FUNCTIONAL REQUIREMENTS"
	markerNonFunctional = "NON-FUNCTIONAL REQUIREMENTS"
	markerTargetUsers   = "TARGET USERS"
	markerFeatures      = "REQUIRED FEATURES"
	markerEndpoints     = "ENDPOINTS"
	markerDataModel     = "DATA MODEL"
)

var bulletRe = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+(.*\S)`)

// firstJSONObject returns the first-to-last-brace span of s when that
// span is valid JSON. This recovers objects wrapped in prose, which is
// how models usually break a "strict JSON" instruction.
func firstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	span := s[start : end+1]
	if !gjson.Valid(span) {
		return "", false
	}
	return span, true
}

// parseTaskLists pulls the three decomposition lists out of a model
// response. Fallback chain: whole response as JSON, then the first
// balanced object span, then empty lists. Missing keys are empty lists.
// This function never fails.
func parseTaskLists(response string) (frontend, backend, integration []string) {
	candidate := strings.TrimSpace(response)
	if !gjson.Valid(candidate) {
		span, ok := firstJSONObject(response)
		if !ok {
			return []string{}, []string{}, []string{}
		}
		candidate = span
	}

	root := gjson.Parse(candidate)
	return stringList(root.Get("frontend_tasks")),
		stringList(root.Get("backend_tasks")),
		stringList(root.Get("integration_points"))
}

func stringList(r gjson.Result) []string {
	out := []string{}
	if !r.IsArray() {
		return out
	}
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitSections returns the text between the first and second markers and
// the text after the second marker. Either part is empty when its marker
// is missing; callers substitute their defaults.
func splitSections(s, first, second string) (string, string) {
	i := strings.Index(s, first)
	if i == -1 {
		return "", ""
	}
	rest := s[i+len(first):]
	j := strings.Index(rest, second)
	if j == -1 {
		return trimSection(rest), ""
	}
	return trimSection(rest[:j]), trimSection(rest[j+len(second):])
}

// trimSection strips the marker's optional trailing colon and the
// surrounding whitespace from a section body.
func trimSection(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ":")
	return strings.TrimSpace(s)
}

// bulletLines extracts the payload of every `- ` or `* ` prefixed line.
func bulletLines(s string) []string {
	matches := bulletRe.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// nameBeforeColon returns the text before the first colon, or fallback
// when there is no colon or nothing precedes it.
func nameBeforeColon(s, fallback string) string {
	idx := strings.Index(s, ":")
	if idx <= 0 {
		return fallback
	}
	name := strings.TrimSpace(s[:idx])
	if name == "" {
		return fallback
	}
	return name
}
