package generator

import (
	"context"
	"errors"
	"log/slog"

	"wechat_ai_editor/docimport"
	"wechat_ai_editor/media"
)

// ErrEmptyOutput is wrapped in a GenerationError when the model answers
// with nothing usable.
var ErrEmptyOutput = errors.New("model returned empty html")

// GenerationError reports a failed model call. The draft is left as it was.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "failed to format article: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Input is everything one formatting run needs.
type Input struct {
	Text     string
	Assets   []media.Asset
	Config   Config
	Document *docimport.Document
}

// Agent builds the request, calls the model and post-processes the answer.
type Agent struct {
	llm    LLMClient
	logger *slog.Logger
}

func NewAgent(llm LLMClient, logger *slog.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Agent{llm: llm, logger: logger}, nil
}

// Generate returns the rendered article HTML.
func (a *Agent) Generate(ctx context.Context, in Input) (string, error) {
	req, err := BuildRequest(in.Text, in.Assets, in.Config, in.Document)
	if err != nil {
		return "", err
	}

	a.logger.Debug("calling model", "parts", len(req.Parts), "images", len(in.Assets), "document", in.Document != nil)
	raw, err := a.llm.Complete(ctx, req)
	if err != nil {
		a.logger.Error("model call failed", "err", err)
		return "", &GenerationError{Err: err}
	}

	html := PostProcess(raw, in.Assets)
	if html == "" {
		return "", &GenerationError{Err: ErrEmptyOutput}
	}
	if refs := FindPlaceholders(html); len(refs) > 0 {
		a.logger.Warn("unresolved image placeholders", "indices", refs)
	}
	return html, nil
}
