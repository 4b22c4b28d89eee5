package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/opensession/opensession-go/internal/localindex"
	"github.com/opensession/opensession-go/internal/uploadapi"
)

func openTestStore(t *testing.T) *localindex.Store {
	t.Helper()
	store, err := localindex.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPushUploadsPendingSessionsAndMarksSynced(t *testing.T) {
	store := openTestStore(t)

	row := localindex.Row{ID: "sess-1", Tool: "claude-code", TeamID: "team-a", CreatedAt: "2026-01-01T00:00:00Z"}
	if err := store.UpsertLocalSession(row, localindex.GitContext{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.CacheBody("sess-1", []byte(`{"schema_version":1}`)); err != nil {
		t.Fatalf("cache body: %v", err)
	}

	var receivedIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req uploadapi.UploadRequest
		json.NewDecoder(r.Body).Decode(&req)
		receivedIDs = append(receivedIDs, req.SessionID)
		json.NewEncoder(w).Encode(uploadapi.UploadResponse{SessionID: req.SessionID})
	}))
	defer server.Close()

	client := uploadapi.NewClient(server.URL, "")
	result, err := Push(context.Background(), store, client, "team-a", nil)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Uploaded != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("unexpected push result: %+v", result)
	}
	if len(receivedIDs) != 1 || receivedIDs[0] != "sess-1" {
		t.Fatalf("expected server to receive sess-1, got %v", receivedIDs)
	}

	pending, err := store.PendingUploads("team-a")
	if err != nil {
		t.Fatalf("pending uploads: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending uploads after push, got %+v", pending)
	}
}

func TestPushSkipsSessionsWithoutCachedBody(t *testing.T) {
	store := openTestStore(t)

	row := localindex.Row{ID: "sess-2", Tool: "claude-code", TeamID: "team-a", CreatedAt: "2026-01-01T00:00:00Z"}
	if err := store.UpsertLocalSession(row, localindex.GitContext{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := uploadapi.NewClient(server.URL, "")
	result, err := Push(context.Background(), store, client, "team-a", nil)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Skipped != 1 || called {
		t.Fatalf("expected session without cached body to be skipped without a network call, got %+v called=%v", result, called)
	}
}

func TestPushLeavesFailedSessionLocalOnly(t *testing.T) {
	store := openTestStore(t)

	row := localindex.Row{ID: "sess-3", Tool: "claude-code", TeamID: "team-a", CreatedAt: "2026-01-01T00:00:00Z"}
	if err := store.UpsertLocalSession(row, localindex.GitContext{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.CacheBody("sess-3", []byte(`{}`)); err != nil {
		t.Fatalf("cache body: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := uploadapi.NewClient(server.URL, "")
	result, err := Push(context.Background(), store, client, "team-a", nil)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if result.Failed != 1 || result.Uploaded != 0 {
		t.Fatalf("expected 1 failed upload, got %+v", result)
	}

	pending, err := store.PendingUploads("team-a")
	if err != nil {
		t.Fatalf("pending uploads: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "sess-3" {
		t.Fatalf("expected sess-3 still pending after failed upload, got %+v", pending)
	}
}

func TestPullUpsertsRemoteSessionsAndAdvancesCursor(t *testing.T) {
	store := openTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("team_id"); got != "team-a" {
			t.Errorf("expected team_id=team-a, got %q", got)
		}
		json.NewEncoder(w).Encode(uploadapi.PullResponse{
			Sessions: []uploadapi.SessionSummary{
				{ID: "sess-9", TeamID: "team-a", Tool: "cursor", CreatedAt: "2026-01-01T00:00:00Z"},
			},
			NextCursor: "cursor-xyz",
		})
	}))
	defer server.Close()

	client := uploadapi.NewClient(server.URL, "")
	result, err := Pull(context.Background(), store, client, "team-a")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if result.Received != 1 {
		t.Fatalf("expected 1 received session, got %+v", result)
	}

	rows, err := store.ListSessions(localindex.ListFilter{TeamID: "team-a"})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "sess-9" || rows[0].SyncStatus != "remote_only" {
		t.Fatalf("unexpected rows after pull: %+v", rows)
	}

	cursor, ok, err := store.GetSyncCursor("team-a")
	if err != nil || !ok || cursor != "cursor-xyz" {
		t.Fatalf("expected cursor advanced to cursor-xyz, got %q ok=%v err=%v", cursor, ok, err)
	}
}
