package codex

import (
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

const fixture = `{"type":"session_meta","session_id":"codex-sess-1","timestamp":"2026-01-01T00:00:00Z"}
{"type":"response_item","timestamp":"2026-01-01T00:00:01Z","payload":{"type":"message","role":"user","text":"Fix the bug"}}
{"type":"response_item","timestamp":"2026-01-01T00:00:02Z","payload":{"type":"function_call","name":"shell","call_id":"c1"}}
{"type":"response_item","timestamp":"2026-01-01T00:00:03Z","payload":{"type":"function_call_output","call_id":"c1","content":"ok"}}
{"type":"event_msg","timestamp":"2026-01-01T00:00:04Z","payload":{"type":"task_started"}}
`

func TestParse(t *testing.T) {
	s, err := Parser{}.Parse("session.jsonl", []byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SessionID != "codex-sess-1" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.Agent.Tool != "codex" || s.Agent.Provider != "openai" {
		t.Errorf("Agent = %+v", s.Agent)
	}
	if len(s.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(s.Events))
	}
	if s.Events[0].Type.Kind != cil.KindUserMessage {
		t.Errorf("events[0].Kind = %q", s.Events[0].Type.Kind)
	}
	if s.Events[1].Type.Kind != cil.KindToolCall || s.Events[1].Type.Name != "shell" {
		t.Errorf("events[1] = %+v", s.Events[1].Type)
	}
	if s.Events[2].Type.Kind != cil.KindToolResult || s.Events[2].Type.CallID != "c1" {
		t.Errorf("events[2] = %+v", s.Events[2].Type)
	}
	if s.Stats.EventCount != 3 || s.Stats.MessageCount != 1 || s.Stats.ToolCallCount != 1 {
		t.Errorf("stats = %+v", s.Stats)
	}
}

func TestCanParse(t *testing.T) {
	if !(Parser{}.CanParse("foo.jsonl")) {
		t.Error("expected .jsonl to match")
	}
	if Parser{}.CanParse("foo.json") {
		t.Error("expected .json not to match")
	}
}
