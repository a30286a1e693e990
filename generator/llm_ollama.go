package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaLLM implements LLMClient against a local Ollama server. Images are
// passed natively; other binary parts such as PDFs are rejected.
type OllamaLLM struct {
	Model  string
	client *api.Client
}

func NewOllamaLLMFromConfig(cfg *LLMSettings) (*OllamaLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	var client *api.Client
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base_url: %w", err)
		}
		client = api.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	}
	return &OllamaLLM{Model: cfg.Model, client: client}, nil
}

func (o *OllamaLLM) Complete(ctx context.Context, req Request) (string, error) {
	var images []api.ImageData
	for _, p := range req.Parts {
		if p.Kind != PartBinary {
			continue
		}
		if !isImage(p.MIMEType) {
			return "", fmt.Errorf("ollama: %w: %s", ErrUnsupportedPart, p.MIMEType)
		}
		raw, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return "", fmt.Errorf("ollama: decode image %s: %w", p.Name, err)
		}
		images = append(images, api.ImageData(raw))
	}

	stream := false
	genReq := &api.GenerateRequest{
		Model:  o.Model,
		System: req.System,
		Prompt: textOf(req),
		Images: images,
		Stream: &stream,
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return sb.String(), nil
}
