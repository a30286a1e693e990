package publisher

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// MarkdownToHTML renders a hand-written Markdown article for PublishDraft.
func MarkdownToHTML(md []byte) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(md, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
