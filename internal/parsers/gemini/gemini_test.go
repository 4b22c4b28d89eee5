package gemini

import (
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

const fixture = `{
  "sessionId": "gem-1",
  "messages": [
    {"role": "user", "text": "Hello", "timestamp": "2026-01-01T00:00:00Z"},
    {"role": "gemini", "content": "Hi there", "timestamp": "2026-01-01T00:00:01Z"},
    {"role": "thought", "text": "thinking...", "timestamp": "2026-01-01T00:00:02Z"}
  ]
}`

func TestParse(t *testing.T) {
	s, err := Parser{}.Parse("session.json", []byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SessionID != "gem-1" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.Agent.Tool != "gemini" || s.Agent.Provider != "google" {
		t.Errorf("Agent = %+v", s.Agent)
	}
	if len(s.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(s.Events))
	}
	want := []cil.Kind{cil.KindUserMessage, cil.KindAgentMessage, cil.KindThinking}
	for i, k := range want {
		if s.Events[i].Type.Kind != k {
			t.Errorf("events[%d].Kind = %q, want %q", i, s.Events[i].Type.Kind, k)
		}
	}
}

func TestCanParse(t *testing.T) {
	if !(Parser{}.CanParse("transcript.json")) {
		t.Error("expected .json to match")
	}
}
