package localindex

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RefKind distinguishes the ways a session can be named on the command
// line: relative to HEAD, by id or id-substring, or by a path to a
// transcript file still sitting on disk.
type RefKind int

const (
	RefLatest RefKind = iota // HEAD / HEAD~N — the N most recent sessions
	RefSingle                // HEAD^N — the single session N back from the most recent
	RefID                    // an explicit id, or a substring matched by grep
	RefFile                  // a path to a source transcript file
)

// SessionRef is a parsed `HEAD`-relative session reference, grounded on
// the original CLI's `SessionRef` enum: `opensession show HEAD~3`,
// `opensession show HEAD^1`, `opensession show abc123`, or a bare file
// path are all accepted wherever a command takes a session reference.
type SessionRef struct {
	Kind  RefKind
	Count int // RefLatest: how many sessions to return, minimum 1
	Offset int // RefSingle: 0-indexed places back from the most recent
	ID    string // RefID: the literal id or substring to grep for
	Path  string // RefFile: the file path given
}

// Parse interprets s as a SessionRef. "HEAD" and "HEAD~N" parse as
// RefLatest ("HEAD" is equivalent to "HEAD~1" — a single most-recent
// session). "HEAD^N" parses as RefSingle. Anything that names an existing
// file parses as RefFile. Everything else is treated as RefID, whether
// it's a full session id or a substring to grep for.
func Parse(s string) SessionRef {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)

	if lower == "head" {
		return SessionRef{Kind: RefLatest, Count: 1}
	}

	if rest, ok := cutPrefixFold(trimmed, "head~"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			n = 1
		}
		return SessionRef{Kind: RefLatest, Count: n}
	}

	if rest, ok := cutPrefixFold(trimmed, "head^"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			n = 0
		}
		return SessionRef{Kind: RefSingle, Offset: n}
	}

	if info, err := os.Stat(trimmed); err == nil && !info.IsDir() {
		return SessionRef{Kind: RefFile, Path: trimmed}
	}

	return SessionRef{Kind: RefID, ID: trimmed}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// Resolve returns every Row the ref names, newest first. Only RefLatest
// can match more than one row; the other kinds resolve to at most one.
func (r SessionRef) Resolve(store *Store, tool string) ([]Row, error) {
	switch r.Kind {
	case RefLatest:
		if tool != "" {
			return store.GetSessionsByToolLatest(tool, r.Count)
		}
		return store.GetSessionsLatest(r.Count)

	case RefSingle:
		row, ok, err := r.resolveSingle(store, tool)
		if err != nil || !ok {
			return nil, err
		}
		return []Row{row}, nil

	case RefFile:
		rows, err := store.ListSessions(ListFilter{Search: ""})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.SourcePath == r.Path {
				return []Row{row}, nil
			}
		}
		return nil, nil

	case RefID:
		row, ok, err := r.resolveByID(store, tool)
		if err != nil || !ok {
			return nil, err
		}
		return []Row{row}, nil

	default:
		return nil, fmt.Errorf("localindex: unknown session ref kind %d", r.Kind)
	}
}

// ResolveOne resolves ref to a single session, erroring if it names none
// or (for RefLatest with Count > 1) more than one.
func (r SessionRef) ResolveOne(store *Store, tool string) (Row, error) {
	rows, err := r.Resolve(store, tool)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("localindex: no session matches %s", r.describe())
	}
	if len(rows) > 1 {
		return Row{}, fmt.Errorf("localindex: %s matches %d sessions, expected one", r.describe(), len(rows))
	}
	return rows[0], nil
}

func (r SessionRef) resolveSingle(store *Store, tool string) (Row, bool, error) {
	if tool != "" {
		return store.GetSessionByToolOffset(tool, r.Offset)
	}
	return store.GetSessionByOffset(r.Offset)
}

func (r SessionRef) resolveByID(store *Store, tool string) (Row, bool, error) {
	rows, err := store.ListSessionsLog(LogFilter{Tool: tool, Grep: r.ID, Limit: 1})
	if err != nil {
		return Row{}, false, err
	}
	for _, row := range rows {
		if row.ID == r.ID {
			return row, true, nil
		}
	}
	if len(rows) > 0 {
		return rows[0], true, nil
	}
	return Row{}, false, nil
}

func (r SessionRef) describe() string {
	switch r.Kind {
	case RefLatest:
		return fmt.Sprintf("HEAD~%d", r.Count)
	case RefSingle:
		return fmt.Sprintf("HEAD^%d", r.Offset)
	case RefFile:
		return r.Path
	default:
		return r.ID
	}
}

// toolAliases maps the short flags a CLI accepts for --tool to the
// canonical discover-tool names stored in local_sessions.tool.
var toolAliases = map[string]string{
	"claude":   "claude-code",
	"cursor":   "cursor",
	"codex":    "codex",
	"gemini":   "gemini-cli",
	"amp":      "amp",
	"cline":    "cline",
	"opencode": "opencode",
	"hail":     "hail",
}

// ToolFlagToName resolves a CLI --tool shortcut (e.g. "claude") to the
// canonical tool name stored in the index (e.g. "claude-code"). Unknown
// flags pass through unchanged, so a caller can always fall back to an
// exact tool name.
func ToolFlagToName(flag string) string {
	if name, ok := toolAliases[strings.ToLower(strings.TrimSpace(flag))]; ok {
		return name
	}
	return flag
}
