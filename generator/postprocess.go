package generator

import (
	"regexp"
	"strings"

	"wechat_ai_editor/media"
)

// A language tag only counts when nothing else follows it on the line.
var taggedFenceRe = regexp.MustCompile("(?im)```[a-z0-9_+-]*[ \t]*$")

// PostProcess turns raw model output into article HTML: fences are removed
// and image placeholders are resolved against assets. Everything else is
// kept as the model wrote it. Running it twice gives the same result.
func PostProcess(raw string, assets []media.Asset) string {
	return ResolvePlaceholders(StripFences(raw), assets)
}

// StripFences drops every code fence marker along with its language tag.
func StripFences(s string) string {
	// Removing one marker can join stray backticks into another.
	for strings.Contains(s, "```") {
		s = taggedFenceRe.ReplaceAllString(s, "")
		s = strings.ReplaceAll(s, "```", "")
	}
	return strings.TrimSpace(s)
}

// ExtractTitle returns the text of the first heading in html.
func ExtractTitle(html string) string {
	m := headingRe.FindStringSubmatch(html)
	if len(m) >= 2 {
		return strings.TrimSpace(StripTags(m[1]))
	}
	return ""
}

// ExtractDigest returns up to limit runes of visible text.
func ExtractDigest(html string, limit int) string {
	compact := strings.Join(strings.Fields(StripTags(html)), " ")
	r := []rune(compact)
	if len(r) <= limit {
		return compact
	}
	return string(r[:limit])
}

var (
	headingRe = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	anyTagRe  = regexp.MustCompile(`(?s)<[^>]*>`)
)

// StripTags removes markup, leaving text separated by spaces.
func StripTags(html string) string {
	return anyTagRe.ReplaceAllString(html, " ")
}
