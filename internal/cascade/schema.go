// Package cascade resolves the effective LLM configuration for a
// (user, personality, channel) tuple by folding layered config documents,
// and validates the dynamic advanced-parameters/config-overrides
// documents against the declarative ranges named in spec §4.2.
package cascade

import (
	"strings"
)

// numericRange is a half-open-free inclusive [Min, Max] bound used by
// the declarative schema below; validated leaves outside the range are
// dropped rather than rejecting the whole document.
type numericRange struct {
	Min, Max float64
}

var numericRanges = map[string]numericRange{
	"temperature":         {0, 2},
	"topP":                {0, 1},
	"topK":                {0, 1 << 31},
	"frequencyPenalty":    {-2, 2},
	"presencePenalty":     {-2, 2},
	"repetitionPenalty":   {0, 2},
	"minP":                {0, 1},
	"topA":                {0, 1},
	"reasoning.maxTokens": {1024, 32000},
}

var reasoningEffortValues = map[string]bool{
	"xhigh": true, "high": true, "medium": true, "low": true, "minimal": true, "none": true,
}

// ValidationIssue names one rejected leaf and why, so callers can log at
// debug per spec §4.2 ("malformed documents treated as empty, logged at
// debug") without losing the reason.
type ValidationIssue struct {
	Path   string
	Reason string
}

// ValidateAdvancedParams checks doc against the declarative schema and
// returns a copy containing only the leaves that pass validation, plus
// every rejected leaf as an issue. Unknown leaves not named by the
// schema are preserved opaquely so evolving provider fields pass through
// (spec §9).
func ValidateAdvancedParams(doc map[string]any) (map[string]any, []ValidationIssue) {
	if doc == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(doc))
	var issues []ValidationIssue

	for k, v := range doc {
		if k == "reasoning" {
			reasoning, ok := v.(map[string]any)
			if !ok {
				issues = append(issues, ValidationIssue{Path: "reasoning", Reason: "not an object"})
				continue
			}
			cleaned, reasonIssues := validateReasoning(reasoning)
			out["reasoning"] = cleaned
			issues = append(issues, reasonIssues...)
			continue
		}
		if r, ok := numericRanges[k]; ok {
			n, ok := asFloat(v)
			if !ok {
				issues = append(issues, ValidationIssue{Path: k, Reason: "not numeric"})
				continue
			}
			if n < r.Min || n > r.Max {
				issues = append(issues, ValidationIssue{Path: k, Reason: "out of range"})
				continue
			}
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out, issues
}

func validateReasoning(doc map[string]any) (map[string]any, []ValidationIssue) {
	out := make(map[string]any, len(doc))
	var issues []ValidationIssue
	for k, v := range doc {
		switch k {
		case "effort":
			s, _ := v.(string)
			s = strings.ToLower(strings.TrimSpace(s))
			if !reasoningEffortValues[s] {
				issues = append(issues, ValidationIssue{Path: "reasoning.effort", Reason: "unrecognized value"})
				continue
			}
			out["effort"] = s
		case "maxTokens":
			n, ok := asFloat(v)
			r := numericRanges["reasoning.maxTokens"]
			if !ok || n < r.Min || n > r.Max {
				issues = append(issues, ValidationIssue{Path: "reasoning.maxTokens", Reason: "out of range"})
				continue
			}
			out["maxTokens"] = n
		default:
			out[k] = v
		}
	}
	return out, issues
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
