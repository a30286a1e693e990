package generator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wechat_ai_editor/media"
)

// Sentinel is the canonical placeholder the model is told to emit for the
// image at index i.
func Sentinel(i int) string {
	return fmt.Sprintf("[IMAGE_INDEX_%d]", i)
}

// sentinelRe accepts the spellings models actually produce: [IMAGE_0],
// [IMAGE_INDEX_0], [image index 0], [Image-0], and a bare src="IMAGE_0".
// Group 1 is the bracketed index, group 2 the bare src index and group 3
// spans the bare src value.
var sentinelRe = regexp.MustCompile(
	`(?i)\[\s*image[\s_-]*(?:index[\s_-]*)?(\d+)\s*\]` +
		`|src\s*=\s*"(\s*image[\s_-]*(?:index[\s_-]*)?(\d+)\s*)"`,
)

// ResolvePlaceholders replaces every sentinel that names an existing image
// with that image's URL. Sentinels pointing past the end are kept as-is.
func ResolvePlaceholders(text string, assets []media.Asset) string {
	if len(assets) == 0 {
		return text
	}
	matches := sentinelRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		var (
			idxStart, idxEnd int
			repStart, repEnd int
		)
		if m[2] >= 0 {
			idxStart, idxEnd = m[2], m[3]
			repStart, repEnd = m[0], m[1]
		} else {
			idxStart, idxEnd = m[6], m[7]
			repStart, repEnd = m[4], m[5]
		}
		i, err := strconv.Atoi(text[idxStart:idxEnd])
		if err != nil || i < 0 || i >= len(assets) {
			continue
		}
		b.WriteString(text[last:repStart])
		b.WriteString(assets[i].URL)
		last = repEnd
	}
	b.WriteString(text[last:])
	return b.String()
}

// FindPlaceholders lists the indices referenced in text, in order of
// appearance, including out-of-range ones.
func FindPlaceholders(text string) []int {
	var out []int
	for _, m := range sentinelRe.FindAllStringSubmatch(text, -1) {
		s := m[1]
		if s == "" {
			s = m[3]
		}
		if i, err := strconv.Atoi(s); err == nil {
			out = append(out, i)
		}
	}
	return out
}
