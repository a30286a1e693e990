package media

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/iter"
)

// Store holds the ordered images of the current draft.
type Store struct {
	mu     sync.Mutex
	assets []Asset
	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

type outcome struct {
	asset Asset
	err   error
}

// Add decodes files concurrently and appends the successful ones in the
// order they were given, regardless of which decode finishes first. Files
// that fail are skipped and reported; they never block their siblings.
func (s *Store) Add(ctx context.Context, files []File) ([]Asset, []DecodeFailure) {
	if len(files) == 0 {
		return nil, nil
	}

	outcomes := iter.Map(files, func(f *File) outcome {
		if err := ctx.Err(); err != nil {
			return outcome{err: err}
		}
		a, err := Decode(*f)
		return outcome{asset: a, err: err}
	})

	var (
		added    []Asset
		failures []DecodeFailure
	)
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, DecodeFailure{Index: i, Name: files[i].Name, Err: o.err})
			s.logger.Warn("image decode failed", "name", files[i].Name, "err", o.err)
			continue
		}
		added = append(added, o.asset)
	}

	s.mu.Lock()
	s.assets = append(s.assets, added...)
	s.mu.Unlock()

	s.logger.Debug("images added", "added", len(added), "failed", len(failures))
	return added, failures
}

// Remove deletes the asset with id. It reports whether anything was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.assets {
		if a.ID == id {
			s.assets = append(s.assets[:i:i], s.assets[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the assets in store order.
func (s *Store) List() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Clone(s.assets)
}

// Replace swaps the whole set, e.g. when a history entry is loaded.
func (s *Store) Replace(assets []Asset) {
	s.mu.Lock()
	s.assets = Clone(assets)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// Clone copies an asset slice. Assets hold only value fields, so a shallow
// slice copy is enough to detach it from the source.
func Clone(assets []Asset) []Asset {
	if assets == nil {
		return nil
	}
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out
}
