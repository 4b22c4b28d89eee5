package objectstore

import (
	"errors"
	"strings"
	"testing"
)

func TestLayeredArtifactStorePrefersLocal(t *testing.T) {
	localDir, globalDir := t.TempDir(), t.TempDir()
	layered := NewLayeredArtifactStore(localDir, globalDir)

	hash := strings.Repeat("c", 64)
	if err := layered.Global.Write(hash, []byte(`{"from":"global"}`)); err != nil {
		t.Fatalf("write global: %v", err)
	}
	if err := layered.Local.Write(hash, []byte(`{"from":"local"}`)); err != nil {
		t.Fatalf("write local: %v", err)
	}

	record, err := layered.Read(hash)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(record) != `{"from":"local"}` {
		t.Errorf("record = %s, want local copy to win", record)
	}
}

func TestLayeredArtifactStoreFallsBackToGlobal(t *testing.T) {
	localDir, globalDir := t.TempDir(), t.TempDir()
	layered := NewLayeredArtifactStore(localDir, globalDir)

	hash := strings.Repeat("d", 64)
	if err := layered.Global.Write(hash, []byte(`{"from":"global"}`)); err != nil {
		t.Fatalf("write global: %v", err)
	}

	record, err := layered.Read(hash)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(record) != `{"from":"global"}` {
		t.Errorf("record = %s", record)
	}

	if _, err := layered.Local.Read(hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("local lookup should still miss, got %v", err)
	}
}

func TestLayeredArtifactStoreResolveAndList(t *testing.T) {
	localDir, globalDir := t.TempDir(), t.TempDir()
	layered := NewLayeredArtifactStore(localDir, globalDir)

	localHash := strings.Repeat("1", 64)
	globalHash := strings.Repeat("2", 64)
	if err := layered.Local.Write(localHash, []byte(`{}`)); err != nil {
		t.Fatalf("write local: %v", err)
	}
	if err := layered.Global.Write(globalHash, []byte(`{}`)); err != nil {
		t.Fatalf("write global: %v", err)
	}
	if err := layered.Global.Pin("shared", globalHash); err != nil {
		t.Fatalf("pin global: %v", err)
	}

	if got, err := layered.Resolve(localHash); err != nil || got != localHash {
		t.Errorf("Resolve(local hash) = %q, %v", got, err)
	}
	if got, err := layered.Resolve("shared"); err != nil || got != globalHash {
		t.Errorf("Resolve(shared pin) = %q, %v", got, err)
	}

	hashes, err := layered.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hashes) != 2 {
		t.Errorf("List = %v, want 2 entries", hashes)
	}
}

func TestLayeredArtifactStoreNoGlobalRoot(t *testing.T) {
	layered := NewLayeredArtifactStore(t.TempDir(), "")
	if layered.Global != nil {
		t.Fatal("expected nil Global when globalRoot is empty")
	}
	if _, err := layered.Read(strings.Repeat("9", 64)); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
