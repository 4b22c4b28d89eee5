package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/extract"
	"github.com/opensession/opensession-go/internal/localindex"
)

func ingestCmd() *cobra.Command {
	var hint string
	var scorePlugin string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse transcripts and add them to the local index",
		Long: "ingest reads one or more vendor transcript files, auto-detects " +
			"(or, with --parser, is told) which vendor format each is in, " +
			"normalizes it into the canonical interaction log, stores its " +
			"canonical bytes in the content-addressed source store, scores " +
			"it for usefulness, and upserts a row into the local index.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				for _, path := range args {
					if err := ingestOne(cmd.Context(), e, path, hint, scorePlugin); err != nil {
						return printError("ingest "+path, err)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hint, "parser", "", "parser id to try first (e.g. claude-code, codex, cursor)")
	cmd.Flags().StringVar(&scorePlugin, "score-plugin", "", "scoring plugin to run (defaults to the built-in default)")
	return cmd
}

func ingestOne(ctx context.Context, e *env, path, hint, scorePlugin string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	result, err := e.registry.Preview(path, data, hint)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "opensession: ingest %s: warning: %s\n", path, w)
	}

	session := result.Session
	session.RecomputeStats()

	canonical, err := cil.ToJSONLString(session)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", path, err)
	}
	if _, err := e.sources.Store([]byte(canonical)); err != nil {
		return fmt.Errorf("store source object for %s: %w", path, err)
	}

	meta := extract.UploadMetadataFromSession(session)
	gitCtx := localindex.DetectGitContext(ctx, fileDir(path))
	score, usedPlugin := e.scores.Score(session, scorePlugin)

	row := localindex.Row{
		ID:                session.SessionID,
		SourcePath:        path,
		Tool:              session.Agent.Tool,
		AgentProvider:     session.Agent.Provider,
		AgentModel:        session.Agent.Model,
		Title:             meta.Title,
		Description:       meta.Description,
		Tags:              session.Context.Tags,
		CreatedAt:         session.Context.CreatedAt.Format(time.RFC3339Nano),
		MessageCount:      int64(session.Stats.MessageCount),
		UserMessageCount:  countUserMessages(session),
		TaskCount:         int64(session.Stats.TaskCount),
		EventCount:        int64(session.Stats.EventCount),
		DurationSeconds:   int64(session.Stats.DurationSeconds),
		TotalInputTokens:  intAttr(session.Context.Attributes, "total_input_tokens"),
		TotalOutputTokens: intAttr(session.Context.Attributes, "total_output_tokens"),
		WorkingDirectory:  meta.WorkingDirectory,
		FilesModified:     jsonStringArray(meta.FilesModified),
		FilesRead:         jsonStringArray(meta.FilesRead),
		HasErrors:         meta.HasErrors,
		MaxActiveAgents:   1,
		Score:             score,
		ScorePlugin:       usedPlugin,
	}

	if err := e.store.UpsertLocalSession(row, gitCtx); err != nil {
		return fmt.Errorf("upsert local session %s: %w", session.SessionID, err)
	}
	if err := e.store.CacheBody(session.SessionID, []byte(canonical)); err != nil {
		return fmt.Errorf("cache body for %s: %w", session.SessionID, err)
	}

	fmt.Printf("%s  %s  %s (%d events, score %d via %s)\n", session.SessionID, session.Agent.Tool, path, session.Stats.EventCount, score, usedPlugin)
	return nil
}

func countUserMessages(s cil.Session) int64 {
	var n int64
	for _, ev := range s.Events {
		if ev.Type.Kind == cil.KindUserMessage {
			n++
		}
	}
	return n
}

func intAttr(attrs map[string]any, key string) int64 {
	v, ok := attrs[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// jsonStringArray is a thin adapter: extract.FileMetadata already returns
// files_modified/files_read as JSON-array strings, and localindex.Row wants
// the decoded []string it re-encodes itself on upsert.
func jsonStringArray(jsonArray string) []string {
	if jsonArray == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(jsonArray), &out); err != nil {
		return nil
	}
	return out
}

func fileDir(path string) string {
	dir := path
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[:i]
		}
	}
	return "."
}
