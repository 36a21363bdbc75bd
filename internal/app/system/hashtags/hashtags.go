// Package hashtags extracts and ranks #tags in post content.
package hashtags

import (
	"regexp"
	"sort"
	"strings"
)

// Pattern matches a tag; group 1 is the tag without "#".
var Pattern = regexp.MustCompile(`#([A-Za-z0-9_]+)`)

// Extract returns the distinct lowercased tags in content, without the "#",
// in order of first appearance.
func Extract(content string) []string {
	matches := Pattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Normalize turns user input such as "#Go" or " go " into a stored tag.
// It returns "" when nothing tag-like remains.
func Normalize(q string) string {
	q = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(q), "#"))
	if m := Pattern.FindStringSubmatch("#" + q); m != nil && m[1] == q {
		return strings.ToLower(q)
	}
	return ""
}

// Count is a tag with the number of posts it appeared in.
type Count struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Top counts tags across posts (one slice of tags per post) and returns the
// n most frequent, ties broken alphabetically.
func Top(posts [][]string, n int) []Count {
	if n <= 0 {
		return []Count{}
	}
	counts := map[string]int{}
	for _, tags := range posts {
		for _, t := range tags {
			counts[t]++
		}
	}
	out := make([]Count, 0, len(counts))
	for tag, c := range counts {
		out = append(out, Count{Tag: tag, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
