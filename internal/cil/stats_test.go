package cil

import (
	"encoding/json"
	"testing"
	"time"
)

func testAgent() Agent {
	return Agent{Provider: "anthropic", Model: "claude-opus-4-6", Tool: "claude-code"}
}

func TestSessionRoundtrip(t *testing.T) {
	s := NewSession("test-session-id", testAgent())
	out, err := ToJSONLString(s)
	if err != nil {
		t.Fatalf("ToJSONLString: %v", err)
	}
	parsed, err := FromJSONLString(out)
	if err != nil {
		t.Fatalf("FromJSONLString: %v", err)
	}
	if parsed.Version != CurrentVersion {
		t.Errorf("version = %q, want %q", parsed.Version, CurrentVersion)
	}
	if parsed.SessionID != "test-session-id" {
		t.Errorf("session_id = %q", parsed.SessionID)
	}
	if parsed.Agent.Provider != "anthropic" {
		t.Errorf("agent.provider = %q", parsed.Agent.Provider)
	}
}

func TestEventTypeRoundtrip(t *testing.T) {
	et := NewToolCall("Read")
	raw, err := et.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got EventType
	if err := got.UnmarshalJSON(raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != KindToolCall || got.Name != "Read" {
		t.Errorf("got %+v", got)
	}
}

func TestContentBlockVariants(t *testing.T) {
	start := uint32(3)
	c := Content{Blocks: []ContentBlock{
		{Kind: BlockText, Text: "Hello"},
		{Kind: BlockCode, Code: "fn main() {}", Language: "rust", StartLine: &start},
		{Kind: BlockImage, URL: "https://example.com/img.png", Alt: "Screenshot", MIME: "image/png"},
	}}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed Content
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parsed.Blocks) != 3 {
		t.Fatalf("len(blocks) = %d", len(parsed.Blocks))
	}
	if parsed.Blocks[1].Language != "rust" || *parsed.Blocks[1].StartLine != 3 {
		t.Errorf("code block = %+v", parsed.Blocks[1])
	}
}

func TestRecomputeStats(t *testing.T) {
	s := NewSession("test", testAgent())
	now := time.Now().UTC()
	s.Events = append(s.Events,
		Event{EventID: "e1", Timestamp: now, Type: EventType{Kind: KindUserMessage}, TaskID: "t1", Content: TextContent("hello")},
		Event{EventID: "e2", Timestamp: now.Add(time.Second), Type: NewToolCall("Read"), TaskID: "t1", Content: EmptyContent()},
		Event{EventID: "e3", Timestamp: now.Add(2 * time.Second), Type: EventType{Kind: KindAgentMessage}, TaskID: "t2", Content: TextContent("done")},
	)
	s.RecomputeStats()

	if s.Stats.EventCount != 3 {
		t.Errorf("event_count = %d", s.Stats.EventCount)
	}
	if s.Stats.MessageCount != 2 {
		t.Errorf("message_count = %d", s.Stats.MessageCount)
	}
	if s.Stats.ToolCallCount != 1 {
		t.Errorf("tool_call_count = %d", s.Stats.ToolCallCount)
	}
	if s.Stats.TaskCount != 2 {
		t.Errorf("task_count = %d", s.Stats.TaskCount)
	}
	if s.Stats.DurationSeconds != 2 {
		t.Errorf("duration_seconds = %d", s.Stats.DurationSeconds)
	}
}

func TestRecomputeStatsNewToolTypes(t *testing.T) {
	s := NewSession("test2", testAgent())
	now := time.Now().UTC()
	s.Events = append(s.Events,
		Event{EventID: "e1", Timestamp: now, Type: EventType{Kind: KindFileRead, Path: "/tmp/a.rs"}, Content: EmptyContent()},
		Event{EventID: "e2", Timestamp: now, Type: EventType{Kind: KindCodeSearch, Query: "fn main"}, Content: EmptyContent()},
		Event{EventID: "e3", Timestamp: now, Type: EventType{Kind: KindFileSearch, Pattern: "*.rs"}, Content: EmptyContent()},
		Event{EventID: "e4", Timestamp: now, Type: NewToolCall("Task"), Content: EmptyContent()},
	)
	s.RecomputeStats()
	if s.Stats.ToolCallCount != 4 {
		t.Errorf("tool_call_count = %d, want 4", s.Stats.ToolCallCount)
	}
}
