package generator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wechat_ai_editor/docimport"
	"wechat_ai_editor/history"
	"wechat_ai_editor/media"
)

// ErrGenerating is returned when a format call is made while another is
// still running. Calls are rejected, not queued.
var ErrGenerating = errors.New("generation already in progress")

// Session owns the live draft: text, images, options and the last
// rendered HTML, plus the history log it commits into.
type Session struct {
	agent   *Agent
	images  *media.Store
	history *history.Store
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	text string
	html string
	cfg  Config

	generating atomic.Bool
}

type SessionOption func(*Session)

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates an empty draft.
func NewSession(agent *Agent, hist *history.Store, opts ...SessionOption) *Session {
	s := &Session{
		agent:   agent,
		history: hist,
		cfg:     DefaultConfig(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.images = media.NewStore(s.logger)
	return s
}

func (s *Session) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *Session) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html
}

func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Session) SetTone(t Tone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.SetTone(t)
}

func (s *Session) ToggleEmoji() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ToggleEmoji()
}

func (s *Session) AddImages(ctx context.Context, files []media.File) ([]media.Asset, []media.DecodeFailure) {
	return s.images.Add(ctx, files)
}

func (s *Session) RemoveImage(id string) bool {
	return s.images.Remove(id)
}

func (s *Session) Images() []media.Asset {
	return s.images.List()
}

func (s *Session) Generating() bool {
	return s.generating.Load()
}

// Snapshot returns a detached copy of the live draft.
func (s *Session) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Draft{
		Text:       s.text,
		HTML:       s.html,
		Images:     s.images.List(),
		Config:     s.cfg,
		Generating: s.generating.Load(),
	}
}

// Format rewrites the current draft through the model, stores the result
// as the live HTML and commits it to history.
func (s *Session) Format(ctx context.Context) (string, error) {
	return s.format(ctx, nil)
}

func (s *Session) format(ctx context.Context, doc *docimport.Document) (string, error) {
	s.mu.Lock()
	in := Input{Text: s.text, Config: s.cfg, Document: doc}
	s.mu.Unlock()
	in.Assets = s.images.List()

	if in.Text == "" && len(in.Assets) == 0 && in.Document == nil {
		return "", ErrNothingToFormat
	}
	if !s.generating.CompareAndSwap(false, true) {
		return "", ErrGenerating
	}
	defer s.generating.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	html, err := s.agent.Generate(ctx, in)
	if err != nil {
		return "", err
	}
	s.logger.Info("article formatted", "images", len(in.Assets), "bytes", len(html), "elapsed", time.Since(start))

	s.mu.Lock()
	s.html = html
	s.mu.Unlock()

	if _, _, err := s.history.Append(in.Text, html, in.Assets); err != nil {
		s.logger.Error("history save failed", "err", err)
	}
	return html, nil
}

// ImportResult describes what an imported document did to the draft.
type ImportResult struct {
	Kind      docimport.Kind
	Extracted string
	HTML      string
}

// ImportDocument merges a document into the draft. Word text is appended
// to the raw input; a PDF is sent straight to the model and formatted.
func (s *Session) ImportDocument(ctx context.Context, name string, data []byte) (ImportResult, error) {
	kind, err := docimport.Classify(name)
	if err != nil {
		return ImportResult{}, err
	}

	switch kind {
	case docimport.KindDOCX:
		text, err := docimport.ExtractDOCX(data)
		if err != nil {
			return ImportResult{}, err
		}
		s.mu.Lock()
		s.text = s.text + "\n\n" + text
		s.mu.Unlock()
		s.logger.Info("document imported", "name", name, "chars", len(text))
		return ImportResult{Kind: kind, Extracted: text}, nil
	default:
		doc := docimport.PDF(name, data)
		html, err := s.format(ctx, &doc)
		if err != nil {
			return ImportResult{}, err
		}
		return ImportResult{Kind: kind, HTML: html}, nil
	}
}

// SelectHistory replaces the live text, HTML and images with the entry's.
func (s *Session) SelectHistory(id string) (history.Entry, error) {
	entry, err := s.history.Select(id)
	if err != nil {
		return history.Entry{}, err
	}

	s.mu.Lock()
	s.text = entry.RawContent
	s.html = entry.FormattedContent
	s.images.Replace(entry.Images)
	s.mu.Unlock()
	return entry, nil
}

func (s *Session) DeleteHistory(id string) (bool, error) {
	return s.history.Delete(id)
}

func (s *Session) History() []history.Entry {
	return s.history.List()
}
