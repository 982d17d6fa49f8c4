package ctxassembly

import "strings"

// StripLeadingMentions removes leading personality-mention tokens from
// content so the model never sees an echoed "@name" prefix (spec §4.3
// step 6). aliases may be single- or multi-word; matching is
// case-insensitive and repeats until no more leading alias (optionally
// preceded by "@") is found, so it is idempotent — running it twice
// produces the same result as running it once.
func StripLeadingMentions(content string, aliases []string, maxPasses int) string {
	if maxPasses <= 0 {
		maxPasses = 5
	}
	trimmed := content
	for pass := 0; pass < maxPasses; pass++ {
		stripped := stripOneLeadingMention(trimmed, aliases)
		if stripped == trimmed {
			break
		}
		trimmed = stripped
	}
	return trimmed
}

func stripOneLeadingMention(content string, aliases []string) string {
	lead := strings.TrimLeft(content, " \t")
	withoutAt := strings.TrimPrefix(lead, "@")

	var best string
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if matched, ok := matchAliasPrefix(withoutAt, alias); ok && len(matched) > len(best) {
			best = matched
		}
	}
	if best == "" {
		return content
	}
	rest := withoutAt[len(best):]
	return strings.TrimLeft(rest, " \t,:;")
}

// matchAliasPrefix reports whether content starts with alias
// case-insensitively, at a word boundary (so "Sonnet" doesn't match
// inside "Sonnets"), returning the exact-cased matched prefix.
func matchAliasPrefix(content, alias string) (string, bool) {
	if len(content) < len(alias) {
		return "", false
	}
	if !strings.EqualFold(content[:len(alias)], alias) {
		return "", false
	}
	if len(content) > len(alias) {
		next := content[len(alias)]
		if isWordByte(next) {
			return "", false
		}
	}
	return content[:len(alias)], true
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
