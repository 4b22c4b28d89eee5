// Package cline parses Cline's saved task state: an
// "api_conversation_history.json" file holding the raw Anthropic-shaped
// message array Cline sent to and received from the model.
package cline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for Cline's api_conversation_history.json.
type Parser struct{}

func (Parser) Name() string { return "cline" }

func (Parser) CanParse(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), "api_conversation_history.json")
}

type entry struct {
	Role    string    `json:"role"`
	Content []clBlock `json:"content"`
}

type clBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	ID      string          `json:"id"`
	Input   map[string]any  `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

func (Parser) Parse(_ string, data []byte) (cil.Session, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return cil.Session{}, err
	}

	var events []cil.Event
	now := time.Now().UTC()

	for _, e := range entries {
		role := common.NormalizeRoleLabel(e.Role)
		for _, b := range e.Content {
			switch b.Type {
			case "text":
				cleaned := common.StripSystemReminders(b.Text)
				if strings.TrimSpace(cleaned) == "" {
					continue
				}
				kind := cil.KindAgentMessage
				if role == "user" {
					kind = cil.KindUserMessage
				}
				events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: now, Type: cil.EventType{Kind: kind}, Content: cil.TextContent(cleaned)})
			case "tool_use":
				eventID := b.ID
				if eventID == "" {
					eventID = common.NewEventID()
				}
				events = append(events, cil.Event{EventID: eventID, Timestamp: now, Type: cil.NewToolCall(b.Name), Content: cil.EmptyContent()})
			case "tool_result":
				var text string
				_ = json.Unmarshal(b.Content, &text)
				events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: now, Type: cil.NewToolResult(b.Name, b.IsError, b.ID), Content: cil.TextContent(text)})
			}
		}
	}

	s := cil.NewSession("unknown", cil.Agent{Provider: "unknown", Model: "unknown", Tool: "cline"})
	s.Context.Tags = []string{"cline"}
	s.Events = events
	s.RecomputeStats()
	return s, nil
}
