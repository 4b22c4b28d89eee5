// Package sync orchestrates moving sessions between a machine's local
// index and a team's handoff server: push walks pending local-only
// sessions up to the server, pull brings down summaries of sessions
// this machine hasn't seen, recorded against a per-team cursor.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensession/opensession-go/internal/localindex"
	"github.com/opensession/opensession-go/internal/uploadapi"
	"golang.org/x/time/rate"
)

// PushResult summarizes one push run.
type PushResult struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// Push uploads every local_only session for team, oldest first, pacing
// requests through limiter (nil disables pacing). A session whose body
// isn't in the cache is skipped rather than failing the whole run — it
// will be retried on the next push once something re-caches it. A
// session that fails to upload is logged and left local_only so the next
// push retries it; Push does not stop the whole run on a single failure.
func Push(ctx context.Context, store *localindex.Store, client *uploadapi.Client, teamID string, limiter *rate.Limiter) (PushResult, error) {
	var result PushResult

	pending, err := store.PendingUploads(teamID)
	if err != nil {
		return result, fmt.Errorf("sync: list pending uploads: %w", err)
	}

	for _, row := range pending {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result, fmt.Errorf("sync: rate limit wait: %w", err)
			}
		}

		body, ok, err := store.GetCachedBody(row.ID)
		if err != nil {
			return result, fmt.Errorf("sync: get cached body for %s: %w", row.ID, err)
		}
		if !ok {
			result.Skipped++
			slog.Warn("sync: skipping upload, no cached body", "session_id", row.ID)
			continue
		}

		req := uploadapi.UploadRequest{
			SessionID:         row.ID,
			TeamID:            teamID,
			UserID:            row.UserID,
			Nickname:          row.Nickname,
			Tool:              row.Tool,
			AgentProvider:     row.AgentProvider,
			AgentModel:        row.AgentModel,
			Title:             row.Title,
			Description:       row.Description,
			Tags:              row.Tags,
			CreatedAt:         row.CreatedAt,
			MessageCount:      row.MessageCount,
			TaskCount:         row.TaskCount,
			EventCount:        row.EventCount,
			DurationSeconds:   row.DurationSeconds,
			TotalInputTokens:  row.TotalInputTokens,
			TotalOutputTokens: row.TotalOutputTokens,
			ScorePlugin:       row.ScorePlugin,
			GitRemote:         row.GitRemote,
			GitBranch:         row.GitBranch,
			GitCommit:         row.GitCommit,
			GitRepoName:       row.GitRepoName,
			PRNumber:          row.PRNumber,
			PRURL:             row.PRURL,
			Body:              body,
		}

		if _, err := client.Push(ctx, req); err != nil {
			result.Failed++
			slog.Error("sync: upload failed, leaving session local_only", "session_id", row.ID, "error", err)
			continue
		}

		if err := store.MarkSynced(row.ID); err != nil {
			return result, fmt.Errorf("sync: mark %s synced: %w", row.ID, err)
		}
		result.Uploaded++
	}

	return result, nil
}

// PullResult summarizes one pull run.
type PullResult struct {
	Received int
}

// Pull fetches every session summary for team created or updated since
// the stored cursor, upserts each as a remote session, and advances the
// cursor only after every summary in the response has been applied.
func Pull(ctx context.Context, store *localindex.Store, client *uploadapi.Client, teamID string) (PullResult, error) {
	var result PullResult

	cursor, _, err := store.GetSyncCursor(teamID)
	if err != nil {
		return result, fmt.Errorf("sync: get sync cursor: %w", err)
	}

	resp, err := client.Pull(ctx, uploadapi.PullRequest{TeamID: teamID, Cursor: cursor})
	if err != nil {
		return result, fmt.Errorf("sync: pull: %w", err)
	}

	for _, summary := range resp.Sessions {
		err := store.UpsertRemoteSession(localindex.SessionSummary{
			ID:                summary.ID,
			UserID:            summary.UserID,
			Nickname:          summary.Nickname,
			TeamID:            summary.TeamID,
			Tool:              summary.Tool,
			AgentProvider:     summary.AgentProvider,
			AgentModel:        summary.AgentModel,
			Title:             summary.Title,
			Description:       summary.Description,
			Tags:              summary.Tags,
			CreatedAt:         summary.CreatedAt,
			UploadedAt:        summary.UploadedAt,
			MessageCount:      summary.MessageCount,
			TaskCount:         summary.TaskCount,
			EventCount:        summary.EventCount,
			DurationSeconds:   summary.DurationSeconds,
			TotalInputTokens:  summary.TotalInputTokens,
			TotalOutputTokens: summary.TotalOutputTokens,
			Score:             summary.Score,
			ScorePlugin:       summary.ScorePlugin,
		})
		if err != nil {
			return result, fmt.Errorf("sync: upsert remote session %s: %w", summary.ID, err)
		}
		result.Received++
	}

	if resp.NextCursor != "" {
		if err := store.SetSyncCursor(teamID, resp.NextCursor); err != nil {
			return result, fmt.Errorf("sync: set sync cursor: %w", err)
		}
	}

	return result, nil
}

// NewUploadLimiter builds a rate limiter pacing at most ratePerSecond
// upload requests per second, bursting up to burst at a time.
func NewUploadLimiter(ratePerSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}
