package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"wechat_ai_editor/media"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: "Untitled Draft"},
		{name: "whitespace", raw: "  \n\t", want: "Untitled Draft"},
		{name: "short", raw: "Hello world", want: "Hello world"},
		{name: "exactly limit", raw: strings.Repeat("a", 30), want: strings.Repeat("a", 30)},
		{name: "over limit", raw: strings.Repeat("a", 31), want: strings.Repeat("a", 30) + "..."},
		{name: "multibyte", raw: strings.Repeat("微信", 20), want: strings.Repeat("微信", 15) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.raw); got != tt.want {
				t.Errorf("Title(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAppendPrependsAndPersists(t *testing.T) {
	backend := NewMemoryBackend()
	s := Open(backend, nil)

	first, added, err := s.Append("one", "<p>1</p>", nil)
	if err != nil || !added {
		t.Fatalf("append: added=%v err=%v", added, err)
	}
	second, _, err := s.Append("two", "<p>2</p>", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	list := s.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if backend.Writes != 2 {
		t.Errorf("expected 2 writes, got %d", backend.Writes)
	}

	reopened := Open(backend, nil)
	if reopened.Len() != 2 {
		t.Fatalf("expected 2 persisted entries, got %d", reopened.Len())
	}
	got, err := reopened.Select(second.ID)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.RawContent != "two" || got.FormattedContent != "<p>2</p>" || !got.Timestamp.Equal(second.Timestamp) {
		t.Errorf("unexpected reloaded entry: %+v", got)
	}
}

func TestAppendEvictsOldest(t *testing.T) {
	s := Open(NewMemoryBackend(), nil)

	var ids []string
	for i := 0; i < Limit+1; i++ {
		e, _, err := s.Append(fmt.Sprintf("draft %d", i), fmt.Sprintf("<p>%d</p>", i), nil)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, e.ID)
	}

	list := s.List()
	if len(list) != Limit {
		t.Fatalf("expected %d entries, got %d", Limit, len(list))
	}
	if list[0].ID != ids[Limit] {
		t.Error("newest entry is not at the head")
	}
	if list[Limit-1].ID != ids[1] {
		t.Error("expected the second draft to be the oldest survivor")
	}
	if _, err := s.Select(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected oldest entry evicted, got %v", err)
	}
}

func TestAppendDedupAgainstHead(t *testing.T) {
	backend := NewMemoryBackend()
	s := Open(backend, nil)

	head, _, _ := s.Append("same", "<p>same</p>", nil)
	again, added, err := s.Append("same", "<p>same</p>", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if added {
		t.Error("expected duplicate append to be a no-op")
	}
	if again.ID != head.ID || s.Len() != 1 {
		t.Errorf("head changed: len=%d id=%s", s.Len(), again.ID)
	}
	if backend.Writes != 1 {
		t.Errorf("expected no extra write, got %d writes", backend.Writes)
	}

	// Only the head is compared.
	s.Append("other", "<p>other</p>", nil)
	if _, added, _ := s.Append("same", "<p>same</p>", nil); !added {
		t.Error("expected append to succeed when the match is not the head")
	}
	if s.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", s.Len())
	}
}

func TestSelectReturnsSnapshot(t *testing.T) {
	s := Open(NewMemoryBackend(), nil)
	live := []media.Asset{{ID: "a", Name: "a.png", URL: "data:image/png;base64,AAAA"}}

	e, _, _ := s.Append("text", "<p>html</p>", live)
	live[0].URL = "mutated"

	got, err := s.Select(e.ID)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got.Images) != 1 || got.Images[0].URL != "data:image/png;base64,AAAA" {
		t.Fatalf("snapshot changed with live draft: %+v", got.Images)
	}

	got.Images[0].Name = "changed by caller"
	again, _ := s.Select(e.ID)
	if again.Images[0].Name != "a.png" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestDeleteUnknownIDLeavesStorageUntouched(t *testing.T) {
	backend := NewMemoryBackend()
	s := Open(backend, nil)
	s.Append("one", "<p>1</p>", nil)

	before, _ := backend.Get(StorageKey)
	writes := backend.Writes

	removed, err := s.Delete("does-not-exist")
	if err != nil || removed {
		t.Fatalf("expected no-op, removed=%v err=%v", removed, err)
	}
	after, _ := backend.Get(StorageKey)
	if !bytes.Equal(before, after) || backend.Writes != writes {
		t.Error("storage changed on unknown delete")
	}
}

func TestDeletePersists(t *testing.T) {
	backend := NewMemoryBackend()
	s := Open(backend, nil)
	a, _, _ := s.Append("a", "<p>a</p>", nil)
	b, _, _ := s.Append("b", "<p>b</p>", nil)

	removed, err := s.Delete(a.ID)
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}

	reopened := Open(backend, nil)
	list := reopened.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("unexpected persisted log: %+v", list)
	}
}

func TestOpenRecoversFromCorruptStorage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "garbage", data: []byte("{not json")},
		{name: "wrong shape", data: []byte(`{"id":"x"}`)},
		{name: "empty", data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryBackend()
			backend.Put(StorageKey, tt.data)

			s := Open(backend, nil)
			if s.Len() != 0 {
				t.Fatalf("expected empty log, got %d", s.Len())
			}
			if _, _, err := s.Append("fresh", "<p>fresh</p>", nil); err != nil {
				t.Fatalf("append after recovery: %v", err)
			}
		})
	}
}

type failingBackend struct {
	*MemoryBackend
	fail bool
}

func (b *failingBackend) Put(key string, value []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Put(key, value)
}

func TestFailedWriteKeepsPreviousState(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	s := Open(backend, nil)
	kept, _, _ := s.Append("kept", "<p>kept</p>", nil)

	backend.fail = true
	if _, _, err := s.Append("lost", "<p>lost</p>", nil); err == nil {
		t.Fatal("expected append error")
	}
	if _, err := s.Delete(kept.ID); err == nil {
		t.Fatal("expected delete error")
	}

	list := s.List()
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Fatalf("in-memory log diverged from storage: %+v", list)
	}
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	if _, err := backend.Get(StorageKey); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	s := Open(backend, nil)
	e, _, err := s.Append("file", "<p>file</p>", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	reopened := Open(backend, nil)
	if got, err := reopened.Select(e.ID); err != nil || got.RawContent != "file" {
		t.Fatalf("reload: %+v %v", got, err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	backend, err := NewSQLiteBackend(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer backend.Close()

	if _, err := backend.Get(StorageKey); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := backend.Put(StorageKey, []byte(`[1]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := backend.Put(StorageKey, []byte(`[2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := backend.Get(StorageKey)
	if err != nil || string(got) != `[2]` {
		t.Fatalf("expected overwritten value, got %q %v", got, err)
	}
}
