// Package gemini parses Google Gemini CLI transcripts: a single JSON
// document with a top-level "messages" array.
package gemini

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for Gemini CLI JSON transcripts.
type Parser struct{}

func (Parser) Name() string { return "gemini" }

func (Parser) CanParse(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

type document struct {
	SessionID string    `json:"session_id"`
	SessionID2 string   `json:"sessionId"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func (Parser) Parse(_ string, data []byte) (cil.Session, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return cil.Session{}, err
	}

	sessionID := doc.SessionID
	if sessionID == "" {
		sessionID = doc.SessionID2
	}
	if sessionID == "" {
		sessionID = "unknown"
	}

	var events []cil.Event
	for i, m := range doc.Messages {
		role := common.NormalizeRoleLabel(m.Role)
		kind := cil.KindAgentMessage
		switch role {
		case "user":
			kind = cil.KindUserMessage
		case "system":
			kind = cil.KindSystemMessage
		case "thinking":
			kind = cil.KindThinking
		}
		text := m.Content
		if text == "" {
			text = m.Text
		}
		ts := parseTimestamp(m.Timestamp, i)
		events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: ts, Type: cil.EventType{Kind: kind}, Content: cil.TextContent(text)})
	}

	now := time.Now().UTC()
	createdAt, updatedAt := now, now
	if len(events) > 0 {
		createdAt, updatedAt = events[0].Timestamp, events[len(events)-1].Timestamp
	}

	s := cil.NewSession(sessionID, cil.Agent{Provider: "google", Model: "unknown", Tool: "gemini"})
	s.Context.Tags = []string{"gemini"}
	s.Context.CreatedAt = createdAt
	s.Context.UpdatedAt = updatedAt
	s.Events = events
	s.RecomputeStats()
	return s, nil
}

func parseTimestamp(ts string, fallbackOffset int) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	return time.Unix(int64(fallbackOffset), 0).UTC()
}
