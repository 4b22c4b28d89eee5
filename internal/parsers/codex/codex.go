// Package codex parses OpenAI Codex CLI transcripts: JSONL with
// session_meta/response_item/event_msg discriminated lines.
package codex

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for Codex CLI JSONL transcripts.
type Parser struct{}

func (Parser) Name() string { return "codex" }

func (Parser) CanParse(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".jsonl")
}

type line struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type responseItem struct {
	Role    string `json:"role"`
	Type    string `json:"type"` // "message", "function_call", "function_call_output"
	Text    string `json:"text"`
	Name    string `json:"name"`
	CallID  string `json:"call_id"`
	Content string `json:"content"`
}

func (Parser) Parse(_ string, data []byte) (cil.Session, error) {
	var events []cil.Event
	var sessionID string

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var l line
		if json.Unmarshal([]byte(raw), &l) != nil {
			continue
		}
		ts := parseTimestamp(l.Timestamp)

		switch l.Type {
		case "session_meta":
			common.SetFirst(&sessionID, l.SessionID)
		case "response_item":
			var item responseItem
			if json.Unmarshal(l.Payload, &item) != nil {
				continue
			}
			events = append(events, responseItemToEvent(item, ts))
		case "event_msg":
			// informational lifecycle events carry no HAIL-worthy payload on their own
		default:
			continue
		}
	}

	if sessionID == "" {
		sessionID = "unknown"
	}

	now := time.Now().UTC()
	createdAt, updatedAt := now, now
	if len(events) > 0 {
		createdAt, updatedAt = events[0].Timestamp, events[len(events)-1].Timestamp
	}

	s := cil.NewSession(sessionID, cil.Agent{Provider: "openai", Model: "unknown", Tool: "codex"})
	s.Context.Tags = []string{"codex"}
	s.Context.CreatedAt = createdAt
	s.Context.UpdatedAt = updatedAt
	events = removeZero(events)
	s.Events = events
	s.RecomputeStats()
	return s, nil
}

func removeZero(events []cil.Event) []cil.Event {
	out := events[:0]
	for _, ev := range events {
		if ev.Type.Kind != "" {
			out = append(out, ev)
		}
	}
	return out
}

func parseTimestamp(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func responseItemToEvent(item responseItem, ts time.Time) cil.Event {
	switch item.Type {
	case "function_call":
		eventID := item.CallID
		if eventID == "" {
			eventID = common.NewEventID()
		}
		return cil.Event{EventID: eventID, Timestamp: ts, Type: cil.NewToolCall(item.Name), Content: cil.EmptyContent()}
	case "function_call_output":
		return cil.Event{EventID: common.NewEventID(), Timestamp: ts, Type: cil.NewToolResult(item.Name, false, item.CallID), Content: cil.TextContent(item.Content)}
	default:
		role := common.NormalizeRoleLabel(item.Role)
		kind := cil.KindAgentMessage
		switch role {
		case "user":
			kind = cil.KindUserMessage
		case "system":
			kind = cil.KindSystemMessage
		case "thinking":
			kind = cil.KindThinking
		}
		return cil.Event{EventID: common.NewEventID(), Timestamp: ts, Type: cil.EventType{Kind: kind}, Content: cil.TextContent(item.Text)}
	}
}
