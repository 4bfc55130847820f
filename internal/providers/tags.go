package providers

import (
	"strings"
	"unicode/utf8"
)

// MaxTagLen is the exclusive upper bound on tag length, in runes.
const MaxTagLen = 30

// ParseTags normalizes a comma-separated provider reply into tags: trimmed,
// lower-cased, non-empty, shorter than MaxTagLen and unique, in first-seen
// order.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]bool, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" || utf8.RuneCountInString(tag) >= MaxTagLen {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
