package generator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"wechat_ai_editor/docimport"
	"wechat_ai_editor/media"
)

// ErrNothingToFormat means there is no text, image or document to send.
var ErrNothingToFormat = errors.New("nothing to format")

const (
	systemPrompt = "You are a professional editor for WeChat Official Accounts (微信公众号). Output raw HTML only."

	// InputMarker precedes the author's text at the end of the instruction.
	InputMarker = "Input Text Content:"

	documentHint = "Extract and incorporate the content from the attached PDF document into the article."
	imageStyle   = `style="display: block; margin: 20px auto; max-width: 100%; border-radius: 8px; box-shadow: 0 4px 12px rgba(0,0,0,0.1);"`
	accentColor  = "#07c160"
)

// BuildRequest assembles the parts for one generation call: the document
// (if any), one part per image in store order, then the instruction text.
func BuildRequest(text string, assets []media.Asset, cfg Config, doc *docimport.Document) (Request, error) {
	if text == "" && len(assets) == 0 && doc == nil {
		return Request{}, ErrNothingToFormat
	}

	parts := make([]Part, 0, len(assets)+3)
	if doc != nil {
		parts = append(parts,
			BinaryPart(doc.Name, doc.MIMEType, base64.StdEncoding.EncodeToString(doc.Data)),
			TextPart(documentHint),
		)
	}
	for _, a := range assets {
		parts = append(parts, BinaryPart(a.Name, a.MIMEType, a.Payload))
	}
	parts = append(parts, TextPart(buildInstruction(text, len(assets), cfg, doc != nil)))

	return Request{System: systemPrompt, Parts: parts}, nil
}

func buildInstruction(text string, images int, cfg Config, hasDoc bool) string {
	tone := cfg.Tone
	if tone == "" {
		tone = ToneProfessional
	}

	var sb strings.Builder
	sb.WriteString("You are a professional editor for WeChat Official Accounts (微信公众号).\n\n")
	sb.WriteString("Task:\n")
	if hasDoc {
		sb.WriteString("1. Analyze the input text and the attached PDF content.\n")
	} else {
		sb.WriteString("1. Analyze the input text.\n")
	}
	sb.WriteString("2. Reformat it into a highly engaging, visually appealing article HTML suitable for WeChat.\n")
	sb.WriteString("3. Use inline CSS styles extensively to make it look professional.\n")
	sb.WriteString("4. Structure: Title, Introduction, clearly divided Sections with styled Headers, and Conclusion.\n")
	sb.WriteString(fmt.Sprintf("5. Tone: %s.\n", tone))
	if cfg.IncludeEmoji {
		sb.WriteString("6. Use relevant emojis to make the text lively.\n")
	} else {
		sb.WriteString("6. Do not use emojis, keep it strictly professional.\n")
	}

	if images > 0 {
		sb.WriteString("\nImages:\n")
		sb.WriteString(fmt.Sprintf("I have attached %d images, in this order. You MUST insert each of them exactly once into the HTML flow where it best fits contextually.\n", images))
		sb.WriteString("Use these placeholders as the img src, one per image:\n")
		for i := 0; i < images; i++ {
			sb.WriteString(fmt.Sprintf("- image %d: <img src=\"%s\" %s />\n", i+1, Sentinel(i), imageStyle))
		}
	}

	sb.WriteString("\nOutput Requirement:\n")
	sb.WriteString("Return ONLY the raw HTML code (body content). Do not wrap it in ``` code fences or ```html markdown blocks.\n")
	sb.WriteString(fmt.Sprintf("Ensure all styles are inline (e.g., <h2 style=\"border-left: 4px solid %s; padding-left: 10px; color: #333;\">).\n", accentColor))
	sb.WriteString(fmt.Sprintf("Use a nice color palette. Primary accent color: %s (WeChat Green).\n", accentColor))

	if text != "" {
		sb.WriteString("\n")
		sb.WriteString(InputMarker)
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}
