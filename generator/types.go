package generator

import (
	"errors"
	"fmt"
	"strings"

	"wechat_ai_editor/media"
)

// Tone is the voice the article is rewritten in.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneEmotional    Tone = "emotional"
	ToneWitty        Tone = "witty"
)

var Tones = []Tone{ToneProfessional, ToneCasual, ToneEmotional, ToneWitty}

var ErrInvalidTone = errors.New("invalid tone")

// ParseTone accepts a tone name case-insensitively.
func ParseTone(s string) (Tone, error) {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tones {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTone, s)
}

// Config holds the generation options for the current session.
type Config struct {
	Tone         Tone `json:"tone"`
	IncludeEmoji bool `json:"includeEmoji"`
}

func DefaultConfig() Config {
	return Config{Tone: ToneProfessional, IncludeEmoji: true}
}

func (c *Config) SetTone(t Tone) error {
	parsed, err := ParseTone(string(t))
	if err != nil {
		return err
	}
	c.Tone = parsed
	return nil
}

// ToggleEmoji flips the emoji flag and returns the new value.
func (c *Config) ToggleEmoji() bool {
	c.IncludeEmoji = !c.IncludeEmoji
	return c.IncludeEmoji
}

// PartKind tells a request part's payload apart.
type PartKind int

const (
	PartText PartKind = iota
	PartBinary
)

// Part is one element of a generation request.
type Part struct {
	Kind PartKind
	Text string
	// Binary parts carry base64 data with its media type.
	MIMEType string
	Data     string
	Name     string
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func BinaryPart(name, mimeType, data string) Part {
	return Part{Kind: PartBinary, Name: name, MIMEType: mimeType, Data: data}
}

// Request is the ordered multi-part payload sent to the model.
type Request struct {
	System string
	Parts  []Part
}

// Draft is the live editor state handed out by Session.
type Draft struct {
	Text       string        `json:"text"`
	HTML       string        `json:"html"`
	Images     []media.Asset `json:"images"`
	Config     Config        `json:"config"`
	Generating bool          `json:"generating"`
}
