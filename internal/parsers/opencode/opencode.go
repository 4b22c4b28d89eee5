// Package opencode parses OpenCode session exports: JSON documents keyed by
// providerID/modelID plus a parts-based message list.
package opencode

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for OpenCode JSON session exports.
type Parser struct{}

func (Parser) Name() string { return "opencode" }

func (Parser) CanParse(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

type document struct {
	SessionID  string     `json:"sessionID"`
	ProviderID string     `json:"providerID"`
	ModelID    string     `json:"modelID"`
	Messages   []ocMsg    `json:"messages"`
}

type ocMsg struct {
	Role  string   `json:"role"`
	Parts []ocPart `json:"parts"`
}

type ocPart struct {
	Type string `json:"type"` // "text" | "tool"
	Text string `json:"text"`
	Tool string `json:"tool"`
}

func (Parser) Parse(_ string, data []byte) (cil.Session, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return cil.Session{}, err
	}

	sessionID := doc.SessionID
	if sessionID == "" {
		sessionID = "unknown"
	}
	providerID, modelID := doc.ProviderID, doc.ModelID
	if providerID == "" {
		providerID = "unknown"
	}
	if modelID == "" {
		modelID = "unknown"
	}

	var events []cil.Event
	now := time.Now().UTC()
	for _, m := range doc.Messages {
		role := common.NormalizeRoleLabel(m.Role)
		for _, p := range m.Parts {
			switch p.Type {
			case "text":
				if strings.TrimSpace(p.Text) == "" {
					continue
				}
				kind := cil.KindAgentMessage
				if role == "user" {
					kind = cil.KindUserMessage
				}
				events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: now, Type: cil.EventType{Kind: kind}, Content: cil.TextContent(p.Text)})
			case "tool":
				events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: now, Type: cil.NewToolCall(p.Tool), Content: cil.EmptyContent()})
			}
		}
	}

	s := cil.NewSession(sessionID, cil.Agent{Provider: providerID, Model: modelID, Tool: "opencode"})
	s.Context.Tags = []string{"opencode"}
	s.Events = events
	s.RecomputeStats()
	return s, nil
}
