package uploadapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensession/opensession-go/internal/extract"
)

func TestClientPushSendsBearerAndDecodesResponse(t *testing.T) {
	var gotAuth, gotMethod, gotPath string
	var gotReq UploadRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(UploadResponse{SessionID: gotReq.SessionID, UploadedAt: "2026-01-01T00:00:00Z"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	resp, err := client.Push(context.Background(), UploadRequest{
		SessionID: "sess-1",
		TeamID:    "team-a",
		Tool:      "claude-code",
		CreatedAt: "2026-01-01T00:00:00Z",
		Body:      []byte(`{"schema_version":1}`),
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/sessions" {
		t.Errorf("expected POST /v1/sessions, got %s %s", gotMethod, gotPath)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("expected session id echoed back, got %q", resp.SessionID)
	}
}

func TestClientPushRejectsInvalidRequestWithoutNetworkCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Push(context.Background(), UploadRequest{})
	if err == nil {
		t.Fatal("expected validation error for empty request")
	}
	if called {
		t.Fatal("expected no network call for an invalid request")
	}
}

func TestClientPushSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("duplicate session id"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Push(context.Background(), UploadRequest{
		SessionID: "sess-1",
		TeamID:    "team-a",
		Tool:      "claude-code",
		CreatedAt: "2026-01-01T00:00:00Z",
		Body:      []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected an error from a non-2xx response")
	}
}

func TestClientPullEncodesQueryParams(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(PullResponse{
			Sessions:   []SessionSummary{{ID: "sess-9", TeamID: "team-a", Tool: "cursor", CreatedAt: "2026-01-01T00:00:00Z"}},
			NextCursor: "cursor-2",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	resp, err := client.Pull(context.Background(), PullRequest{TeamID: "team-a", Cursor: "cursor-1", Limit: 50})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if resp.NextCursor != "cursor-2" || len(resp.Sessions) != 1 || resp.Sessions[0].ID != "sess-9" {
		t.Fatalf("unexpected pull response: %+v", resp)
	}
	if gotQuery == "" {
		t.Fatal("expected non-empty query string")
	}
}

func TestValidateUploadRequestRejectsMissingFields(t *testing.T) {
	cases := []UploadRequest{
		{},
		{SessionID: "a"},
		{SessionID: "a", TeamID: "t"},
		{SessionID: "a", TeamID: "t", Tool: "claude-code"},
		{SessionID: "a", TeamID: "t", Tool: "claude-code", CreatedAt: "not-a-date"},
		{SessionID: "a", TeamID: "t", Tool: "claude-code", CreatedAt: "2026-01-01T00:00:00Z"},
	}
	for i, c := range cases {
		if err := ValidateUploadRequest(c, nil); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, c)
		}
	}
}

func TestValidateUploadRequestAcceptsBodyURLWithoutBody(t *testing.T) {
	req := UploadRequest{
		SessionID: "a", TeamID: "t", Tool: "claude-code",
		CreatedAt: "2026-01-01T00:00:00Z", BodyURL: "https://store.example/blobs/abc",
	}
	if err := ValidateUploadRequest(req, nil); err != nil {
		t.Fatalf("expected body_url to satisfy the body requirement, got %v", err)
	}
}

func TestValidateUploadRequestRejectsUnknownScorePlugin(t *testing.T) {
	scores := extract.NewRegistry(nil)
	req := UploadRequest{
		SessionID: "a", TeamID: "t", Tool: "claude-code",
		CreatedAt: "2026-01-01T00:00:00Z", Body: []byte("{}"), ScorePlugin: "nonexistent",
	}
	if err := ValidateUploadRequest(req, scores); err == nil {
		t.Fatal("expected rejection for an unregistered score_plugin")
	}

	req.ScorePlugin = extract.DefaultPluginName
	if err := ValidateUploadRequest(req, scores); err != nil {
		t.Fatalf("expected the default plugin to validate, got %v", err)
	}
}

func TestValidatePullRequestRequiresTeamID(t *testing.T) {
	if err := ValidatePullRequest(PullRequest{}); err == nil {
		t.Fatal("expected error for missing team_id")
	}
	if err := ValidatePullRequest(PullRequest{TeamID: "team-a", Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}
	if err := ValidatePullRequest(PullRequest{TeamID: "team-a"}); err != nil {
		t.Fatalf("expected valid request to pass, got %v", err)
	}
}
