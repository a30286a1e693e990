package generator

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// MockLLM is an offline stand-in that echoes the input as styled HTML and
// places every attached image through its placeholder.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, req Request) (string, error) {
	images := 0
	for _, p := range req.Parts {
		if p.Kind == PartBinary && isImage(p.MIMEType) {
			images++
		}
	}

	input := ""
	if len(req.Parts) > 0 {
		last := req.Parts[len(req.Parts)-1].Text
		if i := strings.Index(last, InputMarker); i >= 0 {
			input = strings.TrimSpace(last[i+len(InputMarker):])
		}
	}

	var sb strings.Builder
	sb.WriteString("```html\n")
	sb.WriteString(`<h1 style="color: #07c160;">自动生成示例标题</h1>`)
	sb.WriteString("\n")
	for _, line := range strings.Split(input, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(`<p style="line-height: 1.8;">`)
		sb.WriteString(html.EscapeString(line))
		sb.WriteString("</p>\n")
	}
	for i := 0; i < images; i++ {
		sb.WriteString(fmt.Sprintf(`<img src="%s" style="display: block; margin: 20px auto; max-width: 100%%;" />`, Sentinel(i)))
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return sb.String(), nil
}
