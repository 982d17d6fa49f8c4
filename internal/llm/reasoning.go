package llm

import (
	"regexp"
	"strings"
)

// EffortTokenShare approximates reasoning.effort as a fraction of
// maxTokens, per spec §9 Open Question #1: provider-specified and
// approximate, documentation only, never sent as a contractual value.
var EffortTokenShare = map[string]float64{
	"xhigh":   0.95,
	"high":    0.80,
	"medium":  0.50,
	"low":     0.20,
	"minimal": 0.10,
	"none":    0,
}

// ReasoningBudget translates a reasoning.effort level plus a top-level
// maxTokens ceiling into an approximate reasoning token budget.
func ReasoningBudget(effort string, maxTokens int) int {
	share, ok := EffortTokenShare[strings.ToLower(effort)]
	if !ok || maxTokens <= 0 {
		return 0
	}
	return int(float64(maxTokens) * share)
}

// reasoningTagNames lists the case-insensitive inline tags recognized as
// wrapping model-internal deliberation, per spec §4.4/§9.
var reasoningTagNames = []string{
	"think", "thinking", "ant_thinking", "reasoning", "thought", "reflection", "scratchpad",
}

var (
	openCloseTagPattern *regexp.Regexp
	orphanCloseByTag    = map[string]*regexp.Regexp{}
)

func init() {
	alt := strings.Join(reasoningTagNames, "|")
	openCloseTagPattern = regexp.MustCompile(`(?is)<(` + alt + `)>(.*?)</(` + alt + `)>`)
	for _, name := range reasoningTagNames {
		orphanCloseByTag[name] = regexp.MustCompile(`(?is)^(.*?)</` + name + `>`)
	}
}

// InterceptReasoning rewrites a raw provider message's content to inject
// API-level reasoning captured in separate fields as `<reasoning>` tags,
// matching spec §4.4's description of a response interceptor that
// reconciles the gap left by upstream chat-completion converters, which
// drop `reasoning`/`reasoning_details` silently. reasoningText is the
// `message.reasoning` string (if any); reasoningDetails is the flattened
// text of any `reasoning_details[].text`/`.summary` entries.
func InterceptReasoning(content, reasoningText string, reasoningDetails []string) string {
	var parts []string
	if strings.TrimSpace(reasoningText) != "" {
		parts = append(parts, reasoningText)
	}
	for _, d := range reasoningDetails {
		if strings.TrimSpace(d) != "" {
			parts = append(parts, d)
		}
	}
	if len(parts) == 0 {
		return content
	}
	return "<reasoning>" + strings.Join(parts, "\n\n") + "</reasoning>" + content
}

// PostProcessed is the result of extracting reasoning from model output,
// per spec §4.4's {cleanedContent, thinkingContent} contract.
type PostProcessed struct {
	Content  string
	Thinking string
}

// PostProcess extracts every recognized inline reasoning tag (including
// orphan closing tags some models emit without an opener), merges and
// deduplicates them with any reasoning already materialized by
// InterceptReasoning, and returns the cleaned content separately.
// PostProcess(PostProcess(x).Content) after re-running tag extraction on
// already-clean content is idempotent because no tags remain to match.
func PostProcess(content string) PostProcessed {
	var thinkingParts []string
	seen := map[string]bool{}

	cleaned := openCloseTagPattern.ReplaceAllStringFunc(content, func(m string) string {
		sub := openCloseTagPattern.FindStringSubmatch(m)
		text := strings.TrimSpace(sub[2])
		if text != "" && !seen[text] {
			seen[text] = true
			thinkingParts = append(thinkingParts, text)
		}
		return ""
	})

	for _, name := range reasoningTagNames {
		re := orphanCloseByTag[name]
		for {
			loc := re.FindStringSubmatchIndex(cleaned)
			if loc == nil {
				break
			}
			text := strings.TrimSpace(cleaned[loc[2]:loc[3]])
			if text != "" && !seen[text] {
				seen[text] = true
				thinkingParts = append(thinkingParts, text)
			}
			cleaned = cleaned[:loc[0]] + cleaned[loc[1]:]
		}
	}

	return PostProcessed{
		Content:  strings.TrimSpace(cleaned),
		Thinking: strings.Join(thinkingParts, "\n\n"),
	}
}
