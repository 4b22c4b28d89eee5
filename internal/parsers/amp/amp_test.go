package amp

import (
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

const fixture = `{
  "id": "T-0000-abcd",
  "agentMode": "default",
  "model": "claude-3",
  "messages": [
    {"role": "user", "content": "Fix the bug"},
    {"role": "assistant", "tool_use": {"name": "Read", "input": {"file_path": "main.go"}}},
    {"role": "assistant", "content": "Done"}
  ]
}`

func TestParse(t *testing.T) {
	s, err := Parser{}.Parse("amp/threads/T-0000-abcd.json", []byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SessionID != "T-0000-abcd" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.Agent.Tool != "amp" || s.Agent.Model != "claude-3" {
		t.Errorf("Agent = %+v", s.Agent)
	}
	if s.Context.Attributes["agent_mode"] != "default" {
		t.Errorf("agent_mode attr = %v", s.Context.Attributes["agent_mode"])
	}
	if len(s.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(s.Events))
	}
	if s.Events[0].Type.Kind != cil.KindUserMessage {
		t.Errorf("events[0].Kind = %q", s.Events[0].Type.Kind)
	}
	if s.Events[1].Type.Kind != cil.KindToolCall || s.Events[1].Type.Name != "Read" {
		t.Errorf("events[1] = %+v", s.Events[1].Type)
	}
	if s.Events[2].Type.Kind != cil.KindAgentMessage {
		t.Errorf("events[2].Kind = %q", s.Events[2].Type.Kind)
	}
}

func TestCanParse(t *testing.T) {
	if !(Parser{}.CanParse("amp/threads/T-abc.json")) {
		t.Error("expected T-*.json under threads/ to match")
	}
	if Parser{}.CanParse("other.json") {
		t.Error("expected non-T- prefixed file not to match")
	}
}
