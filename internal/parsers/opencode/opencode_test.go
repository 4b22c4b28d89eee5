package opencode

import (
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

const fixture = `{
  "sessionID": "oc-1",
  "providerID": "anthropic",
  "modelID": "claude-3",
  "messages": [
    {"role": "user", "parts": [{"type": "text", "text": "Fix the bug"}]},
    {"role": "assistant", "parts": [
      {"type": "tool", "tool": "bash"},
      {"type": "text", "text": "Done"}
    ]}
  ]
}`

func TestParse(t *testing.T) {
	s, err := Parser{}.Parse("session.json", []byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SessionID != "oc-1" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.Agent.Provider != "anthropic" || s.Agent.Model != "claude-3" || s.Agent.Tool != "opencode" {
		t.Errorf("Agent = %+v", s.Agent)
	}
	if len(s.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(s.Events))
	}
	want := []cil.Kind{cil.KindUserMessage, cil.KindToolCall, cil.KindAgentMessage}
	for i, k := range want {
		if s.Events[i].Type.Kind != k {
			t.Errorf("events[%d].Kind = %q, want %q", i, s.Events[i].Type.Kind, k)
		}
	}
}
