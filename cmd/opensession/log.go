package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/localindex"
)

func logCmd() *cobra.Command {
	var (
		tool       string
		model      string
		since      string
		before     string
		touches    string
		grep       string
		hasErrors  bool
		repo       string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List indexed sessions, newest first",
		Long: "log lists sessions from the local index, newest first, with the " +
			"same filter set the original CLI's `log` command supports: a " +
			"time range, a touched-file filter, free-text grep, an " +
			"error-only filter, and repo scoping.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				filter := localindex.LogFilter{
					Tool:        localindex.ToolFlagToName(tool),
					Model:       model,
					Touches:     touches,
					Grep:        grep,
					HasErrors:   hasErrors,
					GitRepoName: repo,
					Limit:       limit,
				}
				if since != "" {
					t, err := localindex.ParseRelativeTime(since)
					if err != nil {
						return printError("log", fmt.Errorf("--since: %w", err))
					}
					filter.Since = &t
				}
				if before != "" {
					t, err := localindex.ParseRelativeTime(before)
					if err != nil {
						return printError("log", fmt.Errorf("--before: %w", err))
					}
					filter.Before = &t
				}

				rows, err := e.store.ListSessionsLog(filter)
				if err != nil {
					return printError("log", err)
				}
				printLogRows(rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "restrict to one tool (claude, codex, cursor, gemini, amp, cline, opencode, hail)")
	cmd.Flags().StringVar(&model, "model", "", "restrict to one agent model")
	cmd.Flags().StringVar(&since, "since", "", `relative or ISO-8601 start time ("3 hours ago", "yesterday", "2024-01-01")`)
	cmd.Flags().StringVar(&before, "before", "", "relative or ISO-8601 end time")
	cmd.Flags().StringVar(&touches, "touches", "", "restrict to sessions that read or modified this path")
	cmd.Flags().StringVar(&grep, "grep", "", "substring match against title, description, and tags")
	cmd.Flags().BoolVar(&hasErrors, "has-errors", false, "restrict to sessions with a failed shell command or tool error")
	cmd.Flags().StringVar(&repo, "repo", "", "restrict to one git repo name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to print")
	return cmd
}

func printLogRows(rows []localindex.Row) {
	if len(rows) == 0 {
		fmt.Println("no sessions indexed")
		return
	}
	for _, r := range rows {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		tags := ""
		if len(r.Tags) > 0 {
			tags = " [" + strings.Join(r.Tags, ",") + "]"
		}
		errFlag := ""
		if r.HasErrors {
			errFlag = " !"
		}
		fmt.Printf("%-12s %-12s %-10s %5dev  %s%s%s\n",
			shortID(r.ID), r.Tool, r.CreatedAt[:minInt(10, len(r.CreatedAt))], r.EventCount, padTitle(title, 40), tags, errFlag)
	}
}

// padTitle truncates and right-pads title to a fixed display width, using
// runewidth so multi-column runes (CJK, emoji) in session titles don't push
// the rest of the row out of column alignment the way byte-counted %-40s
// padding would.
func padTitle(title string, width int) string {
	truncated := runewidth.Truncate(title, width, "...")
	return runewidth.FillRight(truncated, width)
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
