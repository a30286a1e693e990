package publisher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// WeChat collapses nested lists and renumbers ordered ones, so lists are
// sent as one paragraph per item with the marker written out.
var (
	listRe  = regexp.MustCompile(`(?s)<(ol|ul)[^>]*>(.*?)</(?:ol|ul)>`)
	itemRe  = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe     = regexp.MustCompile(`(?s)<h([1-6])([^>]*)>(.*?)</h[1-6]>`)
	styleRe = regexp.MustCompile(`(?i)style\s*=\s*"([^"]*)"`)
)

var headingSizes = map[string]string{
	"1": "24px",
	"2": "22px",
	"3": "20px",
	"4": "18px",
	"5": "16px",
	"6": "15px",
}

func flattenListsForWeChat(html string) string {
	return listRe.ReplaceAllStringFunc(html, func(block string) string {
		m := listRe.FindStringSubmatch(block)
		items := itemRe.FindAllStringSubmatch(m[2], -1)
		if len(items) == 0 {
			return block
		}
		return listParagraphs(m[1] == "ol", items)
	})
}

func listParagraphs(ordered bool, items [][]string) string {
	var b strings.Builder
	for i, item := range items {
		marker := "• "
		if ordered {
			marker = strconv.Itoa(i+1) + ". "
		}
		b.WriteString("<p>" + marker + strings.TrimSpace(item[1]) + "</p>")
	}
	return b.String()
}

// convertHeadingsForWeChat keeps the model's inline style when it set one
// and falls back to a size per level otherwise.
func convertHeadingsForWeChat(html string) string {
	return hRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 4 {
			return block
		}
		text := strings.TrimSpace(parts[3])
		if s := styleRe.FindStringSubmatch(parts[2]); len(s) == 2 && strings.TrimSpace(s[1]) != "" {
			return fmt.Sprintf(`<p style="font-weight:700;%s">%s</p>`, s[1], text)
		}
		size := headingSizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, text)
	})
}

func normalizeForWeChat(html string) string {
	html = convertHeadingsForWeChat(html)
	html = flattenListsForWeChat(html)
	return html
}
