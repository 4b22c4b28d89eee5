// Package amp parses Sourcegraph Amp thread files: JSON documents named
// "T-<uuid>.json" under an "amp/threads/" directory, keyed by agentMode and
// a messages array whose tool invocations carry a "tool_use" marker.
package amp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for Amp thread JSON files.
type Parser struct{}

func (Parser) Name() string { return "amp" }

func (Parser) CanParse(path string) bool {
	base := path
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		base = path[i+1:]
	}
	return strings.HasPrefix(base, "T-") && strings.HasSuffix(strings.ToLower(base), ".json")
}

type thread struct {
	ID        string    `json:"id"`
	AgentMode string    `json:"agentMode"`
	Model     string    `json:"model"`
	Messages  []ampMsg  `json:"messages"`
}

type ampMsg struct {
	Role     string          `json:"role"`
	Content  string          `json:"content"`
	ToolUse  *ampToolUse     `json:"tool_use"`
	ToolCall json.RawMessage `json:"tool_call"`
}

type ampToolUse struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (Parser) Parse(_ string, data []byte) (cil.Session, error) {
	var t thread
	if err := json.Unmarshal(data, &t); err != nil {
		return cil.Session{}, err
	}

	sessionID := t.ID
	if sessionID == "" {
		sessionID = "unknown"
	}

	var events []cil.Event
	for _, m := range t.Messages {
		ts := time.Now().UTC()
		if m.ToolUse != nil {
			events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: ts, Type: cil.NewToolCall(m.ToolUse.Name), Content: cil.EmptyContent()})
			continue
		}
		role := common.NormalizeRoleLabel(m.Role)
		kind := cil.KindAgentMessage
		if role == "user" {
			kind = cil.KindUserMessage
		}
		if m.Content == "" {
			continue
		}
		events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: ts, Type: cil.EventType{Kind: kind}, Content: cil.TextContent(m.Content)})
	}

	model := t.Model
	if model == "" {
		model = "unknown"
	}
	s := cil.NewSession(sessionID, cil.Agent{Provider: "sourcegraph", Model: model, Tool: "amp"})
	s.Context.Tags = []string{"amp"}
	if t.AgentMode != "" {
		s.Context.Attributes = map[string]any{"agent_mode": t.AgentMode}
	}
	s.Events = events
	s.RecomputeStats()
	return s, nil
}
