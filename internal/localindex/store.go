package localindex

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the local sqlite index, shared by every command in a single
// process the way the original's `Arc<LocalDb>` is shared across its TUI
// and daemon. The mutex serializes access the same way: sqlite tolerates
// one writer at a time, and a single in-process mutex is simpler than
// coordinating via the database's own locking for what is, in practice, a
// single-user CLI tool.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and applies
// any pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localindex: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("localindex: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("localindex: enable foreign keys: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateSchema(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("localindex: load embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("localindex: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("localindex: new migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("localindex: apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const insertLocalSessionSQL = `
INSERT INTO local_sessions
  (id, source_path, team_id, sync_status, tool, agent_provider, agent_model,
   title, description, tags, created_at,
   message_count, user_message_count, task_count, event_count, duration_seconds,
   total_input_tokens, total_output_tokens,
   git_remote, git_branch, git_commit, git_repo_name, working_directory,
   files_modified, files_read, has_errors, max_active_agents, score, score_plugin)
VALUES (?, ?, ?, 'local_only', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  source_path=excluded.source_path, team_id=excluded.team_id,
  tool=excluded.tool, agent_provider=excluded.agent_provider, agent_model=excluded.agent_model,
  title=excluded.title, description=excluded.description, tags=excluded.tags,
  message_count=excluded.message_count, user_message_count=excluded.user_message_count,
  task_count=excluded.task_count, event_count=excluded.event_count,
  duration_seconds=excluded.duration_seconds,
  total_input_tokens=excluded.total_input_tokens, total_output_tokens=excluded.total_output_tokens,
  git_remote=excluded.git_remote, git_branch=excluded.git_branch,
  git_commit=excluded.git_commit, git_repo_name=excluded.git_repo_name,
  working_directory=excluded.working_directory,
  files_modified=excluded.files_modified, files_read=excluded.files_read,
  has_errors=excluded.has_errors, max_active_agents=excluded.max_active_agents,
  score=excluded.score, score_plugin=excluded.score_plugin
`

// UpsertLocalSession inserts or refreshes the row for a session freshly
// parsed from a transcript file. It never touches sync_status or
// uploaded_at — those belong exclusively to the sync pipeline, so a
// re-index of a session that's already been uploaded doesn't regress it
// back to appearing unsynced.
func (s *Store) UpsertLocalSession(row Row, gitCtx GitContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filesModifiedJSON, err := marshalStrings(row.FilesModified)
	if err != nil {
		return err
	}
	filesReadJSON, err := marshalStrings(row.FilesRead)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(insertLocalSessionSQL,
		row.ID, nullable(row.SourcePath), nullable(row.TeamID), row.Tool, nullable(row.AgentProvider), nullable(row.AgentModel),
		nullable(row.Title), nullable(row.Description), nullable(joinTags(row.Tags)), row.CreatedAt,
		row.MessageCount, row.UserMessageCount, row.TaskCount, row.EventCount, row.DurationSeconds,
		row.TotalInputTokens, row.TotalOutputTokens,
		nullable(gitCtx.Remote), nullable(gitCtx.Branch), nullable(gitCtx.Commit), nullable(gitCtx.RepoName),
		nullable(row.WorkingDirectory),
		nullable(filesModifiedJSON), nullable(filesReadJSON), row.HasErrors, maxInt64(row.MaxActiveAgents, 1),
		row.Score, nullable(row.ScorePlugin),
	)
	if err != nil {
		return fmt.Errorf("localindex: upsert local session %s: %w", row.ID, err)
	}
	return nil
}

const insertRemoteSessionSQL = `
INSERT INTO local_sessions
  (id, sync_status, user_id, nickname, team_id, tool,
   agent_provider, agent_model, title, description, tags,
   created_at, uploaded_at,
   message_count, task_count, event_count, duration_seconds,
   total_input_tokens, total_output_tokens, score, score_plugin)
VALUES (?, 'remote_only', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  nickname=excluded.nickname,
  title=excluded.title, description=excluded.description, tags=excluded.tags,
  uploaded_at=excluded.uploaded_at,
  message_count=excluded.message_count, task_count=excluded.task_count,
  event_count=excluded.event_count, duration_seconds=excluded.duration_seconds,
  total_input_tokens=excluded.total_input_tokens, total_output_tokens=excluded.total_output_tokens,
  score=excluded.score, score_plugin=excluded.score_plugin
WHERE sync_status = 'remote_only'
`

// UpsertRemoteSession inserts or refreshes the row for a session received
// from a sync pull. The UPDATE branch is guarded by `WHERE sync_status =
// 'remote_only'` so a pull can never clobber a row this machine already
// has as local_only or synced — those states carry information (an
// unsynced local edit, a confirmed upload) the remote summary doesn't see.
func (s *Store) UpsertRemoteSession(summary SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(insertRemoteSessionSQL,
		summary.ID, nullable(summary.UserID), nullable(summary.Nickname), summary.TeamID, summary.Tool,
		nullable(summary.AgentProvider), nullable(summary.AgentModel), nullable(summary.Title), nullable(summary.Description), nullable(joinTags(summary.Tags)),
		summary.CreatedAt, summary.UploadedAt,
		summary.MessageCount, summary.TaskCount, summary.EventCount, summary.DurationSeconds,
		summary.TotalInputTokens, summary.TotalOutputTokens,
		summary.Score, nullable(summary.ScorePlugin),
	)
	if err != nil {
		return fmt.Errorf("localindex: upsert remote session %s: %w", summary.ID, err)
	}
	return nil
}

var selectColumns = `id, source_path, sync_status, last_synced_at,
  user_id, nickname, team_id, tool, agent_provider, agent_model,
  title, description, tags, created_at, uploaded_at,
  message_count, user_message_count, task_count, event_count, duration_seconds,
  total_input_tokens, total_output_tokens,
  git_remote, git_branch, git_commit, git_repo_name,
  pr_number, pr_url, working_directory,
  files_modified, files_read, has_errors, max_active_agents, score, score_plugin`

// ListSessions returns every row matching filter, newest first.
func (s *Store) ListSessions(filter ListFilter) ([]Row, error) {
	where := []string{"1=1"}
	var args []any

	if filter.TeamID != "" {
		where = append(where, "team_id = ?")
		args = append(args, filter.TeamID)
	}
	if filter.SyncStatus != "" {
		where = append(where, "sync_status = ?")
		args = append(args, filter.SyncStatus)
	}
	if filter.GitRepoName != "" {
		where = append(where, "git_repo_name = ?")
		args = append(args, filter.GitRepoName)
	}
	if filter.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		where = append(where, "(COALESCE(title,'') || ' ' || COALESCE(description,'') || ' ' || COALESCE(tags,'')) LIKE ?")
		args = append(args, like)
	}

	query := fmt.Sprintf("SELECT %s FROM local_sessions WHERE %s ORDER BY created_at DESC",
		selectColumns, strings.Join(where, " AND "))
	return s.queryRows(query, args...)
}

// ListSessionsLog applies the richer `log` command filter set: time range,
// touched-file search (matched against both files_modified and
// files_read), grep over title/description/tags/id, has-errors, working
// directory, repo, and a result limit (defaulting to 20, matching the
// original CLI).
func (s *Store) ListSessionsLog(filter LogFilter) ([]Row, error) {
	where := []string{"1=1"}
	var args []any

	if filter.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.Model != "" {
		where = append(where, "agent_model = ?")
		args = append(args, filter.Model)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	if filter.Before != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.Before.UTC().Format(time.RFC3339))
	}
	if filter.Touches != "" {
		like := "%" + filter.Touches + "%"
		where = append(where, "(files_modified LIKE ? OR files_read LIKE ?)")
		args = append(args, like, like)
	}
	if filter.Grep != "" {
		like := "%" + filter.Grep + "%"
		where = append(where, "(id LIKE ? OR title LIKE ? OR description LIKE ? OR tags LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if filter.HasErrors {
		where = append(where, "has_errors = 1")
	}
	if filter.WorkingDirectory != "" {
		where = append(where, "working_directory = ?")
		args = append(args, filter.WorkingDirectory)
	}
	if filter.GitRepoName != "" {
		where = append(where, "git_repo_name = ?")
		args = append(args, filter.GitRepoName)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf("SELECT %s FROM local_sessions WHERE %s ORDER BY created_at DESC LIMIT ?",
		selectColumns, strings.Join(where, " AND "))
	args = append(args, limit)
	return s.queryRows(query, args...)
}

// GetSessionsLatest returns the n most recently created sessions across
// every tool, newest first.
func (s *Store) GetSessionsLatest(n int) ([]Row, error) {
	query := fmt.Sprintf("SELECT %s FROM local_sessions ORDER BY created_at DESC LIMIT ?", selectColumns)
	return s.queryRows(query, n)
}

// GetSessionsByToolLatest returns the n most recently created sessions for
// the given tool, newest first.
func (s *Store) GetSessionsByToolLatest(tool string, n int) ([]Row, error) {
	query := fmt.Sprintf("SELECT %s FROM local_sessions WHERE tool = ? ORDER BY created_at DESC LIMIT ?", selectColumns)
	return s.queryRows(query, tool, n)
}

// GetSessionByOffset returns the session `offset` places back from the
// most recent (0 = most recent), or ok=false if there's no such session.
func (s *Store) GetSessionByOffset(offset int) (Row, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM local_sessions ORDER BY created_at DESC LIMIT 1 OFFSET ?", selectColumns)
	rows, err := s.queryRows(query, offset)
	if err != nil {
		return Row{}, false, err
	}
	if len(rows) == 0 {
		return Row{}, false, nil
	}
	return rows[0], true, nil
}

// GetSessionByToolOffset is GetSessionByOffset scoped to one tool.
func (s *Store) GetSessionByToolOffset(tool string, offset int) (Row, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM local_sessions WHERE tool = ? ORDER BY created_at DESC LIMIT 1 OFFSET ?", selectColumns)
	rows, err := s.queryRows(query, tool, offset)
	if err != nil {
		return Row{}, false, err
	}
	if len(rows) == 0 {
		return Row{}, false, nil
	}
	return rows[0], true, nil
}

func (s *Store) queryRows(query string, args ...any) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("localindex: query: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func scanRow(rows *sql.Rows) (Row, error) {
	var r Row
	var sourcePath, lastSyncedAt, userID, nickname, teamID, agentProvider, agentModel sql.NullString
	var title, description, tags, uploadedAt sql.NullString
	var gitRemote, gitBranch, gitCommit, gitRepoName, prURL, workingDirectory sql.NullString
	var filesModified, filesRead sql.NullString
	var prNumber sql.NullInt64
	var hasErrors int
	var scorePlugin sql.NullString

	err := rows.Scan(
		&r.ID, &sourcePath, &r.SyncStatus, &lastSyncedAt,
		&userID, &nickname, &teamID, &r.Tool, &agentProvider, &agentModel,
		&title, &description, &tags, &r.CreatedAt, &uploadedAt,
		&r.MessageCount, &r.UserMessageCount, &r.TaskCount, &r.EventCount, &r.DurationSeconds,
		&r.TotalInputTokens, &r.TotalOutputTokens,
		&gitRemote, &gitBranch, &gitCommit, &gitRepoName,
		&prNumber, &prURL, &workingDirectory,
		&filesModified, &filesRead, &hasErrors, &r.MaxActiveAgents, &r.Score, &scorePlugin,
	)
	if err != nil {
		return Row{}, fmt.Errorf("localindex: scan row: %w", err)
	}

	r.SourcePath = sourcePath.String
	r.LastSyncedAt = lastSyncedAt.String
	r.UserID = userID.String
	r.Nickname = nickname.String
	r.TeamID = teamID.String
	r.AgentProvider = agentProvider.String
	r.AgentModel = agentModel.String
	r.Title = title.String
	r.Description = description.String
	r.Tags = splitTags(tags.String)
	r.UploadedAt = uploadedAt.String
	r.GitRemote = gitRemote.String
	r.GitBranch = gitBranch.String
	r.GitCommit = gitCommit.String
	r.GitRepoName = gitRepoName.String
	if prNumber.Valid {
		r.PRNumber = &prNumber.Int64
	}
	r.PRURL = prURL.String
	r.WorkingDirectory = workingDirectory.String
	r.FilesModified, _ = unmarshalStrings(filesModified.String)
	r.FilesRead, _ = unmarshalStrings(filesRead.String)
	r.HasErrors = hasErrors != 0
	r.ScorePlugin = scorePlugin.String

	return r, nil
}

// GetSyncCursor returns the stored sync cursor for team, if any.
func (s *Store) GetSyncCursor(teamID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cursor string
	err := s.db.QueryRow("SELECT cursor FROM sync_cursors WHERE team_id = ?", teamID).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localindex: get sync cursor: %w", err)
	}
	return cursor, true, nil
}

// SetSyncCursor records cursor as the sync watermark for team.
func (s *Store) SetSyncCursor(teamID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sync_cursors (team_id, cursor, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(team_id) DO UPDATE SET cursor=excluded.cursor, updated_at=datetime('now')`,
		teamID, cursor)
	if err != nil {
		return fmt.Errorf("localindex: set sync cursor: %w", err)
	}
	return nil
}

// PendingUploads returns every local_only row for team, oldest first —
// the order a push should upload them in.
func (s *Store) PendingUploads(teamID string) ([]Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM local_sessions
		WHERE sync_status = 'local_only' AND team_id = ?
		ORDER BY created_at ASC`, selectColumns)
	return s.queryRows(query, teamID)
}

// MarkSynced flips a session to synced after a successful upload.
func (s *Store) MarkSynced(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE local_sessions SET sync_status = 'synced', last_synced_at = datetime('now')
		WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("localindex: mark synced %s: %w", sessionID, err)
	}
	return nil
}

// WasUploadedAfter reports whether sourcePath's session was already synced
// at or after modified, so a watcher can skip re-uploading an unchanged
// file.
func (s *Store) WasUploadedAfter(sourcePath string, modified time.Time) (bool, error) {
	s.mu.Lock()
	var syncedAt sql.NullString
	err := s.db.QueryRow(`
		SELECT last_synced_at FROM local_sessions
		WHERE source_path = ? AND sync_status = 'synced' AND last_synced_at IS NOT NULL`,
		sourcePath).Scan(&syncedAt)
	s.mu.Unlock()

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("localindex: was uploaded after: %w", err)
	}
	if !syncedAt.Valid {
		return false, nil
	}
	// MigrateFromStateJSON writes RFC3339; MarkSynced writes sqlite's
	// datetime('now') form, which is UTC without a zone suffix.
	dt, err := time.Parse(time.RFC3339, syncedAt.String)
	if err != nil {
		dt, err = time.Parse("2006-01-02 15:04:05", syncedAt.String)
		if err != nil {
			return false, nil
		}
	}
	return !dt.Before(modified), nil
}

// CacheBody stores the raw canonical bytes of a session, so a later
// `handoff build`/`show` doesn't need to re-read and re-parse the source
// file.
func (s *Store) CacheBody(sessionID string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO body_cache (session_id, body, cached_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(session_id) DO UPDATE SET body=excluded.body, cached_at=datetime('now')`,
		sessionID, body)
	if err != nil {
		return fmt.Errorf("localindex: cache body %s: %w", sessionID, err)
	}
	return nil
}

// GetCachedBody returns the cached body for sessionID, if any.
func (s *Store) GetCachedBody(sessionID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body []byte
	err := s.db.QueryRow("SELECT body FROM body_cache WHERE session_id = ?", sessionID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localindex: get cached body %s: %w", sessionID, err)
	}
	return body, true, nil
}

// MigrateFromStateJSON backfills sync state for sessions already known to
// have been uploaded under the pre-index `state.json` bookkeeping: any row
// whose source_path matches a previously-uploaded path is flipped from
// local_only to synced (never the reverse). Returns how many rows changed.
func (s *Store) MigrateFromStateJSON(uploaded map[string]time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for path, uploadedAt := range uploaded {
		var exists bool
		err := s.db.QueryRow("SELECT COUNT(*) > 0 FROM local_sessions WHERE source_path = ?", path).Scan(&exists)
		if err != nil {
			return count, fmt.Errorf("localindex: check source_path %s: %w", path, err)
		}
		if !exists {
			continue
		}
		res, err := s.db.Exec(`
			UPDATE local_sessions SET sync_status = 'synced', last_synced_at = ?
			WHERE source_path = ? AND sync_status = 'local_only'`,
			uploadedAt.UTC().Format(time.RFC3339Nano), path)
		if err != nil {
			return count, fmt.Errorf("localindex: migrate state.json entry %s: %w", path, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	return count, nil
}

// ListRepos returns every distinct non-empty git_repo_name in the index,
// alphabetically.
func (s *Store) ListRepos() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT DISTINCT git_repo_name FROM local_sessions
		WHERE git_repo_name IS NOT NULL ORDER BY git_repo_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("localindex: list repos: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	return result, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("localindex: marshal string list: %w", err)
	}
	return string(raw), nil
}

func unmarshalStrings(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, nil // tolerate legacy/foreign data the way the original's session_to_full_json does
	}
	return values, nil
}

func maxInt64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
