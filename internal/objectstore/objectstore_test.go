package objectstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSourceStoreStoreIsIdempotentAndFanOut(t *testing.T) {
	dir := t.TempDir()
	store := NewSourceStore(dir)

	hash, err := store.Store([]byte("hello world"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(hash) != 64 {
		t.Fatalf("hash = %q, want 64 hex chars", hash)
	}
	wantPath := filepath.Join(dir, "objects", "sha256", hash[:2], hash[2:4], hash)
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("expected fan-out path %s: %v", wantPath, err)
	}

	// Second write of identical bytes must not error and must leave the
	// file untouched (idempotent write-if-absent).
	hash2, err := store.Store([]byte("hello world"))
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	if hash2 != hash {
		t.Errorf("hash2 = %q, want %q", hash2, hash)
	}
}

func TestSourceStoreReadNotFound(t *testing.T) {
	store := NewSourceStore(t.TempDir())
	_, _, err := store.Read(strings.Repeat("0", 64))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestArtifactStorePinAndDeleteConflict(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(dir)

	record := []byte(`{"version":"v1"}`)
	src := NewSourceStore(dir)
	hash, err := src.Store(record)
	if err != nil {
		t.Fatalf("store source: %v", err)
	}
	if err := store.Write(hash, record); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := store.Pin("latest", hash); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	pins, err := store.ListPins()
	if err != nil {
		t.Fatalf("ListPins: %v", err)
	}
	if pins["latest"] != hash {
		t.Errorf("pins[latest] = %q, want %q", pins["latest"], hash)
	}

	if err := store.Delete(hash); !errors.Is(err, ErrConflict) {
		t.Errorf("Delete while pinned: err = %v, want ErrConflict", err)
	}

	if err := store.Unpin("latest"); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if err := store.Delete(hash); err != nil {
		t.Errorf("Delete after unpin: %v", err)
	}
}

func TestArtifactStoreResolve(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(dir)
	hash := strings.Repeat("ab12", 16)
	if err := store.Write(hash, []byte(`{}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Pin("recent", hash); err != nil {
		t.Fatalf("Pin: %v", err)
	}

	for _, id := range []string{hash, "os://artifact/" + hash, "recent"} {
		got, err := store.Resolve(id)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", id, err)
		}
		if got != hash {
			t.Errorf("Resolve(%q) = %q, want %q", id, got, hash)
		}
	}

	if _, err := store.Resolve("nonexistent-alias"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(nonexistent): err = %v, want ErrNotFound", err)
	}
}
