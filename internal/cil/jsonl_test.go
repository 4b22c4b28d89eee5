package cil

import (
	"strings"
	"testing"
)

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func buildFixtureSession() Session {
	s := NewSession("sess-1", testAgent())
	s.Context.Title = "Fix the bug"
	s.Events = append(s.Events,
		Event{EventID: "e1", Timestamp: s.Context.CreatedAt, Type: EventType{Kind: KindUserMessage}, Content: TextContent("hi")},
		Event{EventID: "e2", Timestamp: s.Context.CreatedAt, Type: NewFileRead("/tmp/a.go"), Content: EmptyContent()},
	)
	s.RecomputeStats()
	return s
}

func TestReadJSONLRoundtrip(t *testing.T) {
	s := buildFixtureSession()
	out, err := ToJSONLString(s)
	if err != nil {
		t.Fatalf("ToJSONLString: %v", err)
	}
	got, err := FromJSONLString(out)
	if err != nil {
		t.Fatalf("FromJSONLString: %v", err)
	}
	if len(got.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(got.Events))
	}
	if got.Stats.EventCount != 2 {
		t.Errorf("stats.event_count = %d", got.Stats.EventCount)
	}
}

func TestReadHeaderDoesNotNeedEvents(t *testing.T) {
	s := buildFixtureSession()
	out, err := ToJSONLString(s)
	if err != nil {
		t.Fatalf("ToJSONLString: %v", err)
	}
	agent, ctx, err := ReadHeader(stringsReader(out))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if agent.Tool != "claude-code" {
		t.Errorf("agent.tool = %q", agent.Tool)
	}
	if ctx.Title != "Fix the bug" {
		t.Errorf("context.title = %q", ctx.Title)
	}
}

func TestReadHeaderAndStats(t *testing.T) {
	s := buildFixtureSession()
	out, err := ToJSONLString(s)
	if err != nil {
		t.Fatalf("ToJSONLString: %v", err)
	}
	agent, _, stats, err := ReadHeaderAndStats(stringsReader(out))
	if err != nil {
		t.Fatalf("ReadHeaderAndStats: %v", err)
	}
	if agent.Tool != "claude-code" {
		t.Errorf("agent.tool = %q", agent.Tool)
	}
	if stats.EventCount != 2 {
		t.Errorf("stats.event_count = %d", stats.EventCount)
	}
}

func TestReadJSONLDuplicateHeaderIgnored(t *testing.T) {
	s := buildFixtureSession()
	out, err := ToJSONLString(s)
	if err != nil {
		t.Fatalf("ToJSONLString: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	withDup := lines[0] + "\n" + strings.Join(lines, "\n")
	got, err := ReadJSONL(stringsReader(withDup))
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(got.Events) != 2 {
		t.Errorf("events = %d, want 2 (duplicate header line must be ignored)", len(got.Events))
	}
}

func TestReadJSONLUnexpectedFirstLineType(t *testing.T) {
	_, err := ReadJSONL(stringsReader(`{"type":"event","event_id":"e1"}` + "\n"))
	if err == nil || !strings.Contains(err.Error(), "unexpected line type") {
		t.Errorf("err = %v, want unexpected line type", err)
	}
}

func TestReadJSONLEmptyStream(t *testing.T) {
	if _, err := ReadJSONL(stringsReader("")); err != ErrMissingHeader {
		t.Errorf("err = %v, want ErrMissingHeader", err)
	}
}

func TestReadHeaderAndStatsMissingStats(t *testing.T) {
	s := buildFixtureSession()
	full, err := ToJSONLString(s)
	if err != nil {
		t.Fatalf("ToJSONLString: %v", err)
	}
	lines := strings.Split(strings.TrimRight(full, "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("not enough lines to truncate")
	}
	withoutStats := strings.Join(lines[:len(lines)-1], "\n")
	agent, _, stats, err := ReadHeaderAndStats(stringsReader(withoutStats))
	if err != nil {
		t.Fatalf("ReadHeaderAndStats: %v", err)
	}
	if stats != nil {
		t.Errorf("expected nil stats when trailing stats line absent, got %+v", stats)
	}
	if agent.Tool != "claude-code" {
		t.Errorf("agent.tool = %q", agent.Tool)
	}
}
