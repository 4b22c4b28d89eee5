package hail

import (
	"bytes"
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

func TestParseRoundTrip(t *testing.T) {
	s := cil.NewSession("hail-sess-1", cil.Agent{Provider: "anthropic", Model: "claude-3", Tool: "claude-code"})
	s.Events = []cil.Event{
		{EventID: "e1", Timestamp: s.Context.CreatedAt, Type: cil.EventType{Kind: cil.KindUserMessage}, Content: cil.TextContent("hi")},
	}
	s.RecomputeStats()

	var buf bytes.Buffer
	if err := cil.WriteJSONL(&buf, s); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}

	got, err := Parser{}.Parse("session.hail.jsonl", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.SessionID != s.SessionID {
		t.Errorf("SessionID = %q, want %q", got.SessionID, s.SessionID)
	}
	if len(got.Events) != 1 || got.Events[0].Type.Kind != cil.KindUserMessage {
		t.Errorf("events = %+v", got.Events)
	}
}

func TestCanParse(t *testing.T) {
	if !(Parser{}.CanParse("a.hail.jsonl")) {
		t.Error("expected .hail.jsonl to match")
	}
	if !(Parser{}.CanParse("a.jsonl")) {
		t.Error("expected .jsonl to match")
	}
}
