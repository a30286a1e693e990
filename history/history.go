package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"wechat_ai_editor/media"
)

const (
	// Limit is the number of drafts kept.
	Limit = 20
	// StorageKey is the single key the whole log lives under.
	StorageKey = "wechat_editor_history"

	titleRunes   = 30
	defaultTitle = "Untitled Draft"
)

var ErrNotFound = errors.New("history entry not found")

// Entry is one committed draft. Entries are never edited, only removed.
type Entry struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Timestamp        time.Time     `json:"timestamp"`
	RawContent       string        `json:"rawContent"`
	FormattedContent string        `json:"formattedContent"`
	Images           []media.Asset `json:"images"`
}

func (e Entry) clone() Entry {
	e.Images = media.Clone(e.Images)
	return e
}

// Title derives a short label from raw input.
func Title(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(raw) <= titleRunes {
		return raw
	}
	return string([]rune(raw)[:titleRunes]) + "..."
}

// Store is the bounded, newest-first draft log. Every mutation rewrites the
// whole log to the backend before it becomes visible.
type Store struct {
	mu      sync.Mutex
	backend Backend
	entries []Entry
	logger  *slog.Logger
	now     func() time.Time
}

// Open loads the persisted log. Missing or unreadable content yields an
// empty log; the problem is only logged.
func Open(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{backend: backend, logger: logger, now: time.Now}

	data, err := backend.Get(StorageKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
	case err != nil:
		logger.Warn("history load failed, starting empty", "err", err)
	case len(data) > 0:
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			logger.Warn("history is corrupt, starting empty", "err", err)
			break
		}
		if len(entries) > Limit {
			entries = entries[:Limit]
		}
		s.entries = entries
	}
	return s
}

// Append commits a draft at the head. It is a no-op when the head already
// holds the same input and output; the returned bool reports whether an
// entry was added.
func (s *Store) Append(raw, formatted string, images []media.Asset) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 0 {
		head := s.entries[0]
		if head.RawContent == raw && head.FormattedContent == formatted {
			return head.clone(), false, nil
		}
	}

	entry := Entry{
		ID:               uuid.NewString(),
		Title:            Title(raw),
		Timestamp:        s.now(),
		RawContent:       raw,
		FormattedContent: formatted,
		Images:           media.Clone(images),
	}

	next := make([]Entry, 0, min(len(s.entries)+1, Limit))
	next = append(next, entry)
	for _, e := range s.entries {
		if len(next) == Limit {
			break
		}
		next = append(next, e)
	}

	if err := s.persist(next); err != nil {
		return Entry{}, false, err
	}
	s.entries = next
	s.logger.Debug("history appended", "id", entry.ID, "len", len(next))
	return entry.clone(), true, nil
}

// Delete removes the entry with id. An unknown id leaves storage untouched.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false, nil
	}

	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)

	if err := s.persist(next); err != nil {
		return false, err
	}
	s.entries = next
	s.logger.Debug("history deleted", "id", id, "len", len(next))
	return true, nil
}

// Select returns a detached copy of the entry with id.
func (s *Store) Select(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Entry{}, ErrNotFound
	}
	return s.entries[idx].clone(), nil
}

// List returns copies of all entries, newest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.backend.Put(StorageKey, data); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
