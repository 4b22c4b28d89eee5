// Package handoff derives structured, content-addressed handoff summaries
// and artifacts from one or more sessions: the shape that gets committed to
// a repo or posted to a teammate when a coding-assistant run is done and
// someone else needs to pick it up.
package handoff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/extract"
)

// FileChange records one file a session touched and how.
type FileChange struct {
	Path   string `json:"path"`
	Action string `json:"action"` // "created" | "edited" | "deleted"
}

// KeyConversation pairs a user turn with the agent turn that answered it,
// picked out as one of the conversation's notable exchanges.
type KeyConversation struct {
	User  string `json:"user"`
	Agent string `json:"agent"`
}

// ExecutionContract records what the agent committed to doing next. Left
// empty by the pure from-session derivation below; a richer (LLM-assisted)
// summarization pass can fill it in later and must then drop
// "execution_contract" from UndefinedFields.
type ExecutionContract struct {
	NextActions []string `json:"next_actions"`
}

// Uncertainty records open questions the session left unresolved. Same
// pure-derivation caveat as ExecutionContract.
type Uncertainty struct {
	OpenQuestions []string `json:"open_questions,omitempty"`
}

// Verification records checks the session is known to have run, purely
// from ShellCommand events — this is the one rich field a pure function can
// actually fill in.
type Verification struct {
	ChecksRun []string `json:"checks_run"`
}

// Evidence records citations backing the summary's claims. Left to a
// richer summarization pass; see ExecutionContract.
type Evidence struct {
	Citations []string `json:"citations,omitempty"`
}

// WorkPackages groups the session's changes into reviewable units. Left to
// a richer summarization pass; see ExecutionContract.
type WorkPackages struct {
	Items []string `json:"items,omitempty"`
}

// HandoffSummary is a per-session structured digest, the unit that gets
// canonicalized into an artifact.
type HandoffSummary struct {
	SourceSessionID          string  `json:"source_session_id"`
	Tool                      string  `json:"tool"`
	Model                     string  `json:"model"`
	Objective                 *string `json:"objective"`
	ObjectiveUndefinedReason  *string `json:"objective_undefined_reason,omitempty"`
	DurationSeconds           uint64  `json:"duration_seconds"`
	Stats                     cil.Stats `json:"stats"`
	FilesModified             []FileChange `json:"files_modified"`
	FilesRead                 []string `json:"files_read"`
	KeyConversations          []KeyConversation `json:"key_conversations"`
	UserMessages              []string `json:"user_messages"`
	ExecutionContract         ExecutionContract `json:"execution_contract"`
	Uncertainty               Uncertainty `json:"uncertainty"`
	Verification              Verification `json:"verification"`
	Evidence                  Evidence `json:"evidence"`
	WorkPackages               WorkPackages `json:"work_packages"`
	Errors                    []string `json:"errors"`
	UndefinedFields           []string `json:"undefined_fields"`
}

// FromSession derives a HandoffSummary from a session. It is a pure
// function of session content: every field it sets is reconstructible from
// events alone, and the fields that genuinely need outside judgment
// (execution_contract, uncertainty's open questions, evidence, work
// packages) are left at their zero value and named in UndefinedFields
// instead of being guessed at.
func FromSession(s cil.Session) HandoffSummary {
	summary := HandoffSummary{
		SourceSessionID: s.SessionID,
		Tool:            s.Agent.Tool,
		Model:           s.Agent.Model,
		DurationSeconds: s.Stats.DurationSeconds,
		Stats:           s.Stats,
	}

	if objective := extract.FirstUserText(s); objective != "" {
		summary.Objective = &objective
	} else {
		reason := "no user message found"
		summary.ObjectiveUndefinedReason = &reason
	}

	summary.FilesModified, summary.FilesRead = fileChanges(s.Events)
	summary.KeyConversations = keyConversations(s.Events)
	summary.UserMessages = userMessages(s.Events)
	summary.Verification = Verification{ChecksRun: checksRun(s.Events)}
	summary.Errors = sessionErrors(s.Events)

	summary.UndefinedFields = []string{
		"execution_contract", "uncertainty.open_questions", "evidence", "work_packages",
	}

	return summary
}

func fileChanges(events []cil.Event) ([]FileChange, []string) {
	actions := make(map[string]string)
	var order []string
	readSet := make(map[string]struct{})
	var readOrder []string

	for _, ev := range events {
		switch ev.Type.Kind {
		case cil.KindFileCreate:
			if _, ok := actions[ev.Type.Path]; !ok {
				order = append(order, ev.Type.Path)
			}
			actions[ev.Type.Path] = "created"
		case cil.KindFileEdit:
			if cur, ok := actions[ev.Type.Path]; !ok {
				actions[ev.Type.Path] = "edited"
				order = append(order, ev.Type.Path)
			} else if cur == "deleted" {
				actions[ev.Type.Path] = "edited"
			}
		case cil.KindFileDelete:
			if _, ok := actions[ev.Type.Path]; !ok {
				order = append(order, ev.Type.Path)
			}
			actions[ev.Type.Path] = "deleted"
		case cil.KindFileRead:
			if _, ok := readSet[ev.Type.Path]; !ok {
				readSet[ev.Type.Path] = struct{}{}
				readOrder = append(readOrder, ev.Type.Path)
			}
		}
	}

	sort.Strings(order)
	changes := make([]FileChange, 0, len(order))
	for _, path := range order {
		changes = append(changes, FileChange{Path: path, Action: actions[path]})
	}

	var reads []string
	for _, path := range readOrder {
		if _, modified := actions[path]; modified {
			continue
		}
		reads = append(reads, path)
	}
	sort.Strings(reads)

	return changes, reads
}

func keyConversations(events []cil.Event) []KeyConversation {
	var pairs []KeyConversation
	var pendingUser string
	for _, ev := range events {
		switch ev.Type.Kind {
		case cil.KindUserMessage:
			if t := firstText(ev.Content.Blocks); t != "" {
				pendingUser = t
			}
		case cil.KindAgentMessage:
			if pendingUser == "" {
				continue
			}
			if t := firstText(ev.Content.Blocks); t != "" {
				pairs = append(pairs, KeyConversation{User: pendingUser, Agent: t})
				pendingUser = ""
			}
		}
	}
	return pairs
}

func userMessages(events []cil.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Type.Kind != cil.KindUserMessage {
			continue
		}
		if t := firstText(ev.Content.Blocks); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func checksRun(events []cil.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Type.Kind != cil.KindShellCommand {
			continue
		}
		if ev.Type.ExitCode != nil {
			out = append(out, fmt.Sprintf("`%s` → %d", ev.Type.Command, *ev.Type.ExitCode))
		} else {
			out = append(out, fmt.Sprintf("`%s`", ev.Type.Command))
		}
	}
	return out
}

func sessionErrors(events []cil.Event) []string {
	var out []string
	for _, ev := range events {
		switch ev.Type.Kind {
		case cil.KindShellCommand:
			if ev.Type.ExitCode != nil && *ev.Type.ExitCode != 0 {
				out = append(out, fmt.Sprintf("Shell: `%s` → exit %d", ev.Type.Command, *ev.Type.ExitCode))
			}
		case cil.KindToolResult:
			if ev.Type.IsError {
				out = append(out, fmt.Sprintf("Tool: `%s` failed", ev.Type.Name))
			}
		}
	}
	return out
}

func firstText(blocks []cil.ContentBlock) string {
	for _, b := range blocks {
		if b.Kind == cil.BlockText {
			if t := strings.TrimSpace(b.Text); t != "" {
				return t
			}
		}
	}
	return ""
}

// FormatDuration renders a second count as the compact "1h 1m 1s" / "12m
// 30s" / "45s" form used throughout handoff markdown.
func FormatDuration(seconds uint64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

// GenerateMarkdown renders a HandoffSummary as the markdown one session's
// `opensession handoff` output or one entry of a merged multi-session
// handoff is built from.
func GenerateMarkdown(s HandoffSummary) string {
	var b strings.Builder

	b.WriteString("# Session Handoff\n\n")
	fmt.Fprintf(&b, "**Tool:** %s (%s)\n", s.Tool, s.Model)
	fmt.Fprintf(&b, "**Duration:** %s\n", FormatDuration(s.DurationSeconds))
	fmt.Fprintf(&b, "**Messages:** %d\n\n", s.Stats.MessageCount)

	b.WriteString("## Objective\n")
	if s.Objective != nil {
		b.WriteString(*s.Objective)
		b.WriteString("\n\n")
	} else {
		fmt.Fprintf(&b, "_undefined: %s_\n\n", valueOr(s.ObjectiveUndefinedReason))
	}

	if len(s.FilesModified) > 0 {
		b.WriteString("## Files Modified\n")
		for _, f := range s.FilesModified {
			fmt.Fprintf(&b, "- `%s` (%s)\n", f.Path, f.Action)
		}
		b.WriteString("\n")
	}

	if len(s.FilesRead) > 0 {
		b.WriteString("## Files Read\n")
		for _, path := range s.FilesRead {
			fmt.Fprintf(&b, "- `%s`\n", path)
		}
		b.WriteString("\n")
	}

	if len(s.Verification.ChecksRun) > 0 {
		b.WriteString("## Commands\n")
		for _, cmd := range s.Verification.ChecksRun {
			fmt.Fprintf(&b, "- %s\n", cmd)
		}
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("## Errors\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func valueOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
