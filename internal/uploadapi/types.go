// Package uploadapi is the wire contract between a machine's local index
// and the handoff server it syncs with: the shapes pushed on upload, the
// shapes received on pull, and the validation rules a well-formed request
// must satisfy before a push is even attempted.
package uploadapi

import (
	"fmt"
	"time"

	"github.com/opensession/opensession-go/internal/extract"
)

// UploadRequest is one session pushed to the server. Body carries the
// canonical JSONL encoding of the session (the same bytes `internal/cil`
// would write to a HAIL file), so the server never has to understand any
// vendor's native transcript format — only the canonical one.
type UploadRequest struct {
	SessionID         string   `json:"session_id"`
	TeamID            string   `json:"team_id"`
	UserID            string   `json:"user_id,omitempty"`
	Nickname          string   `json:"nickname,omitempty"`
	Tool              string   `json:"tool"`
	AgentProvider     string   `json:"agent_provider,omitempty"`
	AgentModel        string   `json:"agent_model,omitempty"`
	Title             string   `json:"title,omitempty"`
	Description       string   `json:"description,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	CreatedAt         string   `json:"created_at"`
	MessageCount      int64    `json:"message_count"`
	TaskCount         int64    `json:"task_count"`
	EventCount        int64    `json:"event_count"`
	DurationSeconds   int64    `json:"duration_seconds"`
	TotalInputTokens  int64    `json:"total_input_tokens"`
	TotalOutputTokens int64    `json:"total_output_tokens"`
	// ScorePlugin names the scoring plugin the server should run. Empty
	// means "use the server's default plugin" — never "skip scoring".
	ScorePlugin string `json:"score_plugin,omitempty"`
	// BodyURL, when set, points at an already-uploaded object (e.g. a
	// content-addressed blob store URL) carrying Body's bytes, so a
	// re-upload of an unchanged session doesn't have to resend it.
	BodyURL string `json:"body_url,omitempty"`
	// LinkedSessionIDs names other sessions (e.g. sub-agent runs spawned
	// from this one) the server should associate with this upload.
	LinkedSessionIDs []string `json:"linked_session_ids,omitempty"`
	GitRemote        string   `json:"git_remote,omitempty"`
	GitBranch        string   `json:"git_branch,omitempty"`
	GitCommit        string   `json:"git_commit,omitempty"`
	GitRepoName      string   `json:"git_repo_name,omitempty"`
	PRNumber         *int64   `json:"pr_number,omitempty"`
	PRURL            string   `json:"pr_url,omitempty"`
	Body             []byte   `json:"body"`
}

// UploadResponse is the server's acknowledgement of a successful push.
type UploadResponse struct {
	SessionID    string `json:"session_id"`
	UploadedAt   string `json:"uploaded_at"`
	URL          string `json:"url,omitempty"`
	SessionScore int64  `json:"session_score"`
	ScorePlugin  string `json:"score_plugin"`
}

// PullRequest asks the server for every session summary for a team created
// or updated since Cursor (the opaque watermark `internal/localindex`
// stores per team).
type PullRequest struct {
	TeamID string `json:"team_id"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SessionSummary is the shape of one session as the server reports it on
// pull — the wire twin of `internal/localindex.SessionSummary`. Kept as a
// separate type so this package has no dependency on localindex; the sync
// package is responsible for converting between the two.
type SessionSummary struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id,omitempty"`
	Nickname          string   `json:"nickname,omitempty"`
	TeamID            string   `json:"team_id"`
	Tool              string   `json:"tool"`
	AgentProvider     string   `json:"agent_provider,omitempty"`
	AgentModel        string   `json:"agent_model,omitempty"`
	Title             string   `json:"title,omitempty"`
	Description       string   `json:"description,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UploadedAt        string   `json:"uploaded_at"`
	MessageCount      int64    `json:"message_count"`
	TaskCount         int64    `json:"task_count"`
	EventCount        int64    `json:"event_count"`
	DurationSeconds   int64    `json:"duration_seconds"`
	TotalInputTokens  int64    `json:"total_input_tokens"`
	TotalOutputTokens int64    `json:"total_output_tokens"`
	Score             int64    `json:"session_score"`
	ScorePlugin       string   `json:"score_plugin,omitempty"`
}

// PullResponse is the server's answer to a PullRequest: the matching
// summaries and the cursor to store for the next pull.
type PullResponse struct {
	Sessions   []SessionSummary `json:"sessions"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ValidateUploadRequest checks the fields a server would reject a push
// for, so a client can fail fast before spending a round trip on a
// malformed request. When scores is non-nil, a non-empty req.ScorePlugin
// naming a plugin the registry doesn't carry fails the request outright —
// this is an input-validation rejection, not the registry's own
// fall-back-to-default behavior (see internal/extract.Registry.Score).
func ValidateUploadRequest(req UploadRequest, scores *extract.Registry) error {
	if req.SessionID == "" {
		return fmt.Errorf("uploadapi: session_id is required")
	}
	if req.TeamID == "" {
		return fmt.Errorf("uploadapi: team_id is required")
	}
	if req.Tool == "" {
		return fmt.Errorf("uploadapi: tool is required")
	}
	if req.CreatedAt == "" {
		return fmt.Errorf("uploadapi: created_at is required")
	}
	if _, err := time.Parse(time.RFC3339, req.CreatedAt); err != nil {
		return fmt.Errorf("uploadapi: created_at must be RFC3339: %w", err)
	}
	if len(req.BodyURL) == 0 && len(req.Body) == 0 {
		return fmt.Errorf("uploadapi: body or body_url must be set")
	}
	for _, tag := range req.Tags {
		if tag == "" {
			return fmt.Errorf("uploadapi: tags must not contain an empty entry")
		}
	}
	if scores != nil && req.ScorePlugin != "" && !scores.Has(req.ScorePlugin) {
		return fmt.Errorf("uploadapi: unknown score_plugin %q", req.ScorePlugin)
	}
	return nil
}

// ValidatePullRequest checks the fields a server would reject a pull for.
func ValidatePullRequest(req PullRequest) error {
	if req.TeamID == "" {
		return fmt.Errorf("uploadapi: team_id is required")
	}
	if req.Limit < 0 {
		return fmt.Errorf("uploadapi: limit must not be negative")
	}
	return nil
}
