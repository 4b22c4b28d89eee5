package cline

import (
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

const fixture = `[
  {"role": "user", "content": [{"type": "text", "text": "Fix the bug"}]},
  {"role": "assistant", "content": [
    {"type": "tool_use", "id": "t1", "name": "read_file", "input": {"path": "main.go"}}
  ]},
  {"role": "user", "content": [{"type": "tool_result", "id": "t1", "name": "read_file", "content": "package main"}]}
]`

func TestParse(t *testing.T) {
	s, err := Parser{}.Parse("api_conversation_history.json", []byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Agent.Tool != "cline" {
		t.Errorf("Agent = %+v", s.Agent)
	}
	if len(s.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(s.Events))
	}
	want := []cil.Kind{cil.KindUserMessage, cil.KindToolCall, cil.KindToolResult}
	for i, k := range want {
		if s.Events[i].Type.Kind != k {
			t.Errorf("events[%d].Kind = %q, want %q", i, s.Events[i].Type.Kind, k)
		}
	}
	if s.Events[2].Type.CallID != "t1" {
		t.Errorf("tool result call id = %q", s.Events[2].Type.CallID)
	}
}

func TestCanParse(t *testing.T) {
	if !(Parser{}.CanParse("/tmp/tasks/1/api_conversation_history.json")) {
		t.Error("expected match")
	}
	if Parser{}.CanParse("/tmp/tasks/1/ui_messages.json") {
		t.Error("expected non-match")
	}
}
