package claudecode

import (
	"testing"

	"github.com/opensession/opensession-go/internal/cil"
)

const fixture = `{"type":"user","uuid":"u1","sessionId":"sess-abc","timestamp":"2026-01-01T00:00:00.000Z","cwd":"/work","message":{"role":"user","content":"Fix the bug"}}
{"type":"assistant","uuid":"a1","timestamp":"2026-01-01T00:00:01.000Z","message":{"role":"assistant","model":"claude-3","content":[{"type":"text","text":"On it"},{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"main.go"}}]}}
{"type":"user","uuid":"u2","timestamp":"2026-01-01T00:00:02.000Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"     1→package main\n     2→","is_error":false}]}}
`

func TestParseBasicTranscript(t *testing.T) {
	s, err := Parser{}.Parse("session.jsonl", []byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SessionID != "sess-abc" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.Agent.Model != "claude-3" || s.Agent.Tool != "claude-code" {
		t.Errorf("Agent = %+v", s.Agent)
	}
	if s.Context.Attributes["cwd"] != "/work" {
		t.Errorf("cwd attr = %v", s.Context.Attributes["cwd"])
	}

	var kinds []cil.Kind
	for _, ev := range s.Events {
		kinds = append(kinds, ev.Type.Kind)
	}
	want := []cil.Kind{cil.KindUserMessage, cil.KindAgentMessage, cil.KindFileRead, cil.KindToolResult}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("kinds[%d] = %q, want %q", i, kinds[i], k)
		}
	}

	// ToolResult content should be parsed as line-numbered code.
	last := s.Events[len(s.Events)-1]
	if len(last.Content.Blocks) != 1 || last.Content.Blocks[0].Kind != cil.BlockCode {
		t.Errorf("tool result content = %+v", last.Content.Blocks)
	}
	if last.Content.Blocks[0].Language != "go" {
		t.Errorf("language = %q, want go", last.Content.Blocks[0].Language)
	}
}

const editFixture = `{"type":"user","uuid":"u1","sessionId":"sess-edit","timestamp":"2026-01-01T00:00:00.000Z","message":{"role":"user","content":"Rename the greeting"}}
{"type":"assistant","uuid":"a1","timestamp":"2026-01-01T00:00:01.000Z","message":{"role":"assistant","model":"claude-3","content":[{"type":"tool_use","id":"t1","name":"Edit","input":{"file_path":"main.go","old_string":"hi","new_string":"bye"}}]}}
`

func TestParseEditPopulatesDiff(t *testing.T) {
	s, err := Parser{}.Parse("session.jsonl", []byte(editFixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var edit *cil.Event
	for i := range s.Events {
		if s.Events[i].Type.Kind == cil.KindFileEdit {
			edit = &s.Events[i]
		}
	}
	if edit == nil {
		t.Fatalf("no FileEdit event found in %+v", s.Events)
	}
	if edit.Type.Path != "main.go" {
		t.Errorf("path = %q", edit.Type.Path)
	}
	if edit.Type.Diff == "" {
		t.Error("expected a populated diff")
	}
}

func TestCanParse(t *testing.T) {
	p := Parser{}
	if !p.CanParse("foo.jsonl") {
		t.Error("expected .jsonl to match")
	}
	if p.CanParse("foo.json") {
		t.Error("expected .json not to match")
	}
}
