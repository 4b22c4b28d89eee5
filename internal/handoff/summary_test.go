package handoff

import (
	"strings"
	"testing"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
)

func agent() cil.Agent {
	return cil.Agent{Provider: "anthropic", Model: "claude-opus-4-6", Tool: "claude-code"}
}

func event(typ cil.EventType, text string) cil.Event {
	content := cil.EmptyContent()
	if text != "" {
		content = cil.TextContent(text)
	}
	return cil.Event{Timestamp: time.Now().UTC(), Type: typ, Content: content}
}

func intp(n int) *int { return &n }

func TestFormatDuration(t *testing.T) {
	cases := map[uint64]string{
		0:    "0s",
		45:   "45s",
		90:   "1m 30s",
		750:  "12m 30s",
		3661: "1h 1m 1s",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateHandoffBasic(t *testing.T) {
	s := cil.NewSession("test-id", agent())
	s.Events = append(s.Events,
		event(cil.EventType{Kind: cil.KindUserMessage}, "Fix the build error"),
		event(cil.NewFileEdit("src/main.rs", ""), ""),
		event(cil.NewFileRead("Cargo.toml"), ""),
		event(cil.NewShellCommand("cargo build", intp(0)), ""),
	)
	s.RecomputeStats()
	s.Stats.DurationSeconds = 750

	summary := FromSession(s)
	md := GenerateMarkdown(summary)

	for _, want := range []string{
		"# Session Handoff",
		"Fix the build error",
		"claude-code (claude-opus-4-6)",
		"12m 30s",
		"`src/main.rs` (edited)",
		"`Cargo.toml`",
		"`cargo build` → 0",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestFilesReadExcludesModified(t *testing.T) {
	s := cil.NewSession("test-id", agent())
	s.Events = append(s.Events,
		event(cil.EventType{Kind: cil.KindUserMessage}, "test"),
		event(cil.NewFileRead("src/main.rs"), ""),
		event(cil.NewFileEdit("src/main.rs", ""), ""),
		event(cil.NewFileRead("README.md"), ""),
	)
	s.RecomputeStats()

	summary := FromSession(s)
	md := GenerateMarkdown(summary)
	if !strings.Contains(md, "## Files Read\n- `README.md`") {
		t.Errorf("markdown missing Files Read section:\n%s", md)
	}
	for _, f := range summary.FilesRead {
		if f == "src/main.rs" {
			t.Errorf("files_read should exclude modified path, got %v", summary.FilesRead)
		}
	}
}

func TestFileCreateNotOverwrittenByEdit(t *testing.T) {
	s := cil.NewSession("test-id", agent())
	s.Events = append(s.Events,
		event(cil.EventType{Kind: cil.KindUserMessage}, "test"),
		event(cil.EventType{Kind: cil.KindFileCreate, Path: "new_file.rs"}, ""),
		event(cil.NewFileEdit("new_file.rs", ""), ""),
	)
	s.RecomputeStats()

	summary := FromSession(s)
	md := GenerateMarkdown(summary)
	if !strings.Contains(md, "`new_file.rs` (created)") {
		t.Errorf("markdown missing created action:\n%s", md)
	}
}

func TestShellErrorInErrorsSection(t *testing.T) {
	s := cil.NewSession("test-id", agent())
	s.Events = append(s.Events,
		event(cil.EventType{Kind: cil.KindUserMessage}, "test"),
		event(cil.NewShellCommand("cargo test", intp(1)), ""),
	)
	s.RecomputeStats()

	summary := FromSession(s)
	md := GenerateMarkdown(summary)
	if !strings.Contains(md, "## Errors") {
		t.Errorf("markdown missing Errors section:\n%s", md)
	}
	if !strings.Contains(md, "Shell: `cargo test` → exit 1") {
		t.Errorf("markdown missing shell error line:\n%s", md)
	}
}

func TestObjectiveUndefinedWhenNoUserMessage(t *testing.T) {
	s := cil.NewSession("test-id", agent())
	s.Events = append(s.Events, event(cil.EventType{Kind: cil.KindAgentMessage}, "reply only"))
	s.RecomputeStats()

	summary := FromSession(s)
	if summary.Objective != nil {
		t.Errorf("Objective = %v, want nil", *summary.Objective)
	}
	if summary.ObjectiveUndefinedReason == nil {
		t.Fatal("ObjectiveUndefinedReason = nil, want set")
	}
}
