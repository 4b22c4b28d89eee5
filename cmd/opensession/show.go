package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/handoff"
	"github.com/opensession/opensession-go/internal/localindex"
)

func showCmd() *cobra.Command {
	var (
		tool   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show one session's handoff summary",
		Long: "show resolves a session reference — HEAD, HEAD~N, HEAD^N, a " +
			"source file path, or an id/substring — against the local index " +
			"and renders its handoff summary in the requested format.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				ref := localindex.Parse(args[0])
				row, err := ref.ResolveOne(e.store, localindex.ToolFlagToName(tool))
				if err != nil {
					return printError("show", err)
				}

				session, err := loadSessionForRow(e, row)
				if err != nil {
					return printError("show", err)
				}

				summary := handoff.FromSession(session)
				return renderSummary(summary, format)
			})
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "restrict resolution to one tool")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: text|markdown|json")
	return cmd
}

// loadSessionForRow recovers the full Session behind a local index row:
// the cached canonical body if present, otherwise a fresh re-parse of the
// original source file.
func loadSessionForRow(e *env, row localindex.Row) (cil.Session, error) {
	if body, ok, err := e.store.GetCachedBody(row.ID); err == nil && ok {
		session, err := cil.FromJSONLString(string(body))
		if err == nil {
			return session, nil
		}
	}

	if row.SourcePath == "" {
		return cil.Session{}, fmt.Errorf("no cached body and no source path for session %s", row.ID)
	}
	data, err := os.ReadFile(row.SourcePath)
	if err != nil {
		return cil.Session{}, fmt.Errorf("re-read source %s: %w", row.SourcePath, err)
	}
	result, err := e.registry.Preview(row.SourcePath, data, "")
	if err != nil {
		return cil.Session{}, fmt.Errorf("re-parse source %s: %w", row.SourcePath, err)
	}
	session := result.Session
	session.RecomputeStats()
	return session, nil
}

func renderSummary(summary handoff.HandoffSummary, format string) error {
	switch format {
	case "markdown", "text":
		fmt.Print(handoff.GenerateMarkdown(summary))
		return nil
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	default:
		return fmt.Errorf("unknown --format %q (want text, markdown, or json)", format)
	}
}
