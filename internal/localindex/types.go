// Package localindex is the sqlite-backed local index of every session
// opensession has seen on this machine: one row per session, kept
// up to date by `opensession ingest` and consulted by `log`, `show`,
// `handoff`, and `sync` without re-parsing transcripts from disk.
package localindex

import "time"

// Row is one local_sessions record. It is a superset of what a freshly
// parsed transcript can fill in (upserted by UpsertLocalSession) and what a
// sync pull receives from the server (upserted by UpsertRemoteSession) —
// fields the current sync_status doesn't carry are left at their zero
// value.
type Row struct {
	ID                string
	SourcePath        string
	SyncStatus        string // "local_only" | "remote_only" | "synced"
	LastSyncedAt       string
	UserID            string
	Nickname          string
	TeamID            string
	Tool              string
	AgentProvider     string
	AgentModel        string
	Title             string
	Description       string
	Tags              []string
	CreatedAt         string
	UploadedAt        string
	MessageCount      int64
	UserMessageCount  int64
	TaskCount         int64
	EventCount        int64
	DurationSeconds   int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	GitRemote         string
	GitBranch         string
	GitCommit         string
	GitRepoName       string
	PRNumber          *int64
	PRURL             string
	WorkingDirectory  string
	FilesModified     []string
	FilesRead         []string
	HasErrors         bool
	MaxActiveAgents   int64
	Score             int64
	ScorePlugin       string
}

// ListFilter narrows ListSessions, mirroring the original LocalSessionFilter:
// a small set of equality filters plus one LIKE-based free-text search.
type ListFilter struct {
	TeamID      string
	SyncStatus  string
	GitRepoName string
	Search      string
	Tool        string
}

// LogFilter narrows ListSessionsLog, the richer filter set behind the `log`
// command: time ranges, a touched-file search, free-text grep, and the
// auto-detected project scoping `run_log` applies from the caller's cwd.
type LogFilter struct {
	Tool             string
	Model            string
	Since            *time.Time
	Before           *time.Time
	Touches          string
	Grep             string
	HasErrors        bool
	WorkingDirectory string
	GitRepoName      string
	Limit            int
}

// SessionSummary is the shape a sync pull receives from the handoff
// server for one remote session — the fields UpsertRemoteSession writes.
type SessionSummary struct {
	ID                string
	UserID            string
	Nickname          string
	TeamID            string
	Tool              string
	AgentProvider     string
	AgentModel        string
	Title             string
	Description       string
	Tags              []string
	CreatedAt         string
	UploadedAt        string
	MessageCount      int64
	TaskCount         int64
	EventCount        int64
	DurationSeconds   int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	Score             int64
	ScorePlugin       string
}
