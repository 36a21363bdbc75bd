// Package htmlsanitize cleans user-written text. Posts, comments, messages
// and bios are stored as plain text; markup is stripped on the way in and
// the text is rendered through a UGC policy on the way out.
package htmlsanitize

import (
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/dalemusser/pinboard/internal/app/system/hashtags"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strict     *bluemonday.Policy
	ugc        *bluemonday.Policy
	policyOnce sync.Once
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		strict = bluemonday.StrictPolicy()

		ugc = bluemonday.UGCPolicy()
		ugc.RequireNoFollowOnLinks(true)
		ugc.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("a")
	})
	return strict, ugc
}

// Text strips every tag from s and returns the remaining text, with
// entities decoded and surrounding whitespace trimmed.
func Text(s string) string {
	if s == "" {
		return ""
	}
	p, _ := policies()
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(s)))
}

// Render turns stored plain text into display HTML: entities escaped,
// newlines as <br>, and #tags linked to search.
func Render(text string) template.HTML {
	if text == "" {
		return ""
	}
	var b strings.Builder
	last := 0
	for _, m := range hashtags.Pattern.FindAllStringIndex(text, -1) {
		b.WriteString(escapeLines(text[last:m[0]]))
		tag := text[m[0]:m[1]]
		b.WriteString(`<a class="hashtag" href="/search?q=%23` + strings.ToLower(tag[1:]) + `">` + tag + `</a>`)
		last = m[1]
	}
	b.WriteString(escapeLines(text[last:]))
	linked := b.String()
	_, p := policies()
	return template.HTML(p.Sanitize(linked))
}

func escapeLines(s string) string {
	return strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>")
}
