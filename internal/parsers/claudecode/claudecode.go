// Package claudecode parses Claude Code's line-delimited JSON transcript
// format into the canonical interaction log.
package claudecode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for Claude Code JSONL transcripts.
type Parser struct{}

func (Parser) Name() string { return "claude-code" }

func (Parser) CanParse(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".jsonl")
}

func (Parser) Parse(filePath string, data []byte) (cil.Session, error) {
	return parse(filePath, data)
}

type rawEntry struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	SessionID string          `json:"sessionId"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
	Cwd       string          `json:"cwd"`
	Version   string          `json:"version"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Model   string          `json:"model"`
}

type rawBlock struct {
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Thinking   string          `json:"thinking"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input"`
	ToolUseID  string          `json:"tool_use_id"`
	Content    json.RawMessage `json:"content"`
	IsError    bool            `json:"is_error"`
}

func parse(filePath string, data []byte) (cil.Session, error) {
	var events []cil.Event
	var modelName, toolVersion, sessionID, cwd string
	toolUseInfo := make(map[string]common.ToolUseInfo)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry rawEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // skip unparseable lines, matching the teacher parser's tolerance
		}

		switch entry.Type {
		case "user":
			common.SetFirst(&sessionID, entry.SessionID)
			common.SetFirst(&toolVersion, entry.Version)
			common.SetFirst(&cwd, entry.Cwd)
			ts := parseTimestamp(entry.Timestamp)
			processUserEntry(entry, ts, &events, toolUseInfo)
		case "assistant":
			common.SetFirst(&sessionID, entry.SessionID)
			common.SetFirst(&toolVersion, entry.Version)
			var msg rawMessage
			_ = json.Unmarshal(entry.Message, &msg)
			common.SetFirst(&modelName, msg.Model)
			ts := parseTimestamp(entry.Timestamp)
			processAssistantEntry(entry, msg, ts, &events, toolUseInfo)
		default:
			continue // file-history-snapshot and unknown types are skipped
		}
	}

	if sessionID == "" {
		base := path.Base(filePath)
		sessionID = strings.TrimSuffix(base, path.Ext(base))
		if sessionID == "" {
			sessionID = "unknown"
		}
	}
	if modelName == "" {
		modelName = "unknown"
	}

	agent := cil.Agent{Provider: "anthropic", Model: modelName, Tool: "claude-code", ToolVersion: toolVersion}

	createdAt, updatedAt := time.Now().UTC(), time.Now().UTC()
	if len(events) > 0 {
		createdAt = events[0].Timestamp
		updatedAt = events[len(events)-1].Timestamp
	}

	attrs := map[string]any{}
	if cwd != "" {
		attrs["cwd"] = cwd
	}

	s := cil.NewSession(sessionID, agent)
	s.Context = cil.Context{
		Tags:       []string{"claude-code"},
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		Attributes: attrs,
	}
	s.Events = events
	s.RecomputeStats()
	return s, nil
}

func parseTimestamp(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", ts); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func processUserEntry(entry rawEntry, ts time.Time, events *[]cil.Event, toolUseInfo map[string]common.ToolUseInfo) {
	var msg rawMessage
	if json.Unmarshal(entry.Message, &msg) != nil {
		return
	}

	// content may be a plain string or an array of blocks
	var text string
	if json.Unmarshal(msg.Content, &text) == nil {
		cleaned := common.StripSystemReminders(text)
		if strings.TrimSpace(cleaned) != "" {
			*events = append(*events, cil.Event{
				EventID:   entry.UUID,
				Timestamp: ts,
				Type:      cil.EventType{Kind: cil.KindUserMessage},
				Content:   cil.TextContent(cleaned),
			})
		}
		return
	}

	var blocks []rawBlock
	if json.Unmarshal(msg.Content, &blocks) != nil {
		return
	}
	for _, b := range blocks {
		switch b.Type {
		case "text":
			cleaned := common.StripSystemReminders(b.Text)
			if strings.TrimSpace(cleaned) == "" {
				continue
			}
			*events = append(*events, cil.Event{
				EventID:   entry.UUID + "-text",
				Timestamp: ts,
				Type:      cil.EventType{Kind: cil.KindUserMessage},
				Content:   cil.TextContent(cleaned),
			})
		case "tool_result":
			info, ok := toolUseInfo[b.ToolUseID]
			if !ok {
				info = common.ToolUseInfo{Name: "unknown"}
			}
			rawText := toolResultContentToString(b.Content)
			content := common.BuildToolResultContent(rawText, info)
			*events = append(*events, cil.Event{
				EventID:   fmt.Sprintf("%s-result-%s", entry.UUID, b.ToolUseID),
				Timestamp: ts,
				Type:      cil.NewToolResult(info.Name, b.IsError, b.ToolUseID),
				Content:   content,
			})
		}
	}
}

func toolResultContentToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	var blocks []rawBlock
	if json.Unmarshal(raw, &blocks) == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func processAssistantEntry(entry rawEntry, msg rawMessage, ts time.Time, events *[]cil.Event, toolUseInfo map[string]common.ToolUseInfo) {
	attrs := map[string]any{}
	if msg.Model != "" {
		attrs["model"] = msg.Model
	}

	var blocks []rawBlock
	if json.Unmarshal(msg.Content, &blocks) != nil {
		return // assistant messages with plain-string content carry nothing actionable
	}

	for _, b := range blocks {
		switch b.Type {
		case "text":
			cleaned := common.StripSystemReminders(b.Text)
			if cleaned == "" {
				continue
			}
			*events = append(*events, cil.Event{
				EventID:    entry.UUID + "-text",
				Timestamp:  ts,
				Type:       cil.EventType{Kind: cil.KindAgentMessage},
				Content:    cil.TextContent(cleaned),
				Attributes: cloneMap(attrs),
			})
		case "thinking":
			cleaned := common.StripSystemReminders(b.Thinking)
			if cleaned == "" {
				continue
			}
			*events = append(*events, cil.Event{
				EventID:    entry.UUID + "-thinking",
				Timestamp:  ts,
				Type:       cil.EventType{Kind: cil.KindThinking},
				Content:    cil.TextContent(cleaned),
				Attributes: cloneMap(attrs),
			})
		case "tool_use":
			filePath := extractToolFilePath(b.Name, b.Input)
			if b.ID != "" {
				toolUseInfo[b.ID] = common.ToolUseInfo{Name: b.Name, FilePath: filePath}
			}
			eventType := classifyToolUse(b.Name, b.Input)
			content := toolUseContent(b.Name, b.Input)
			eventID := b.ID
			if eventID == "" {
				eventID = entry.UUID + "-tool"
			}
			*events = append(*events, cil.Event{
				EventID:    eventID,
				Timestamp:  ts,
				Type:       eventType,
				Content:    content,
				Attributes: cloneMap(attrs),
			})
		}
	}
}

func cloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func inputStr(input json.RawMessage, keys ...string) string {
	if len(input) == 0 {
		return ""
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(input, &m) != nil {
		return ""
	}
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				return s
			}
		}
	}
	return ""
}

func extractToolFilePath(name string, input json.RawMessage) string {
	switch name {
	case "Read", "Write", "Edit", "NotebookEdit":
		return inputStr(input, "file_path", "notebook_path")
	case "Grep":
		return inputStr(input, "path")
	default:
		return ""
	}
}

func classifyToolUse(name string, input json.RawMessage) cil.EventType {
	switch name {
	case "Read":
		return cil.NewFileRead(orUnknown(inputStr(input, "file_path")))
	case "Grep":
		return cil.EventType{Kind: cil.KindCodeSearch, Query: inputStr(input, "pattern")}
	case "Glob":
		pattern := inputStr(input, "pattern")
		if pattern == "" {
			pattern = "*"
		}
		return cil.EventType{Kind: cil.KindFileSearch, Pattern: pattern}
	case "Write":
		return cil.EventType{Kind: cil.KindFileCreate, Path: orUnknown(inputStr(input, "file_path"))}
	case "Edit", "NotebookEdit":
		filePath := orUnknown(inputStr(input, "file_path", "notebook_path"))
		diff := common.UnifiedDiff(filePath, inputStr(input, "old_string", "old_cell_source"), inputStr(input, "new_string", "new_cell_source"))
		return cil.NewFileEdit(filePath, diff)
	case "Bash":
		return cil.NewShellCommand(inputStr(input, "command"), nil)
	case "WebSearch":
		return cil.EventType{Kind: cil.KindWebSearch, Query: inputStr(input, "query")}
	case "WebFetch":
		return cil.EventType{Kind: cil.KindWebFetch, URL: inputStr(input, "url")}
	default:
		return cil.NewToolCall(name)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func toolUseContent(name string, input json.RawMessage) cil.Content {
	switch name {
	case "Read", "Write", "Edit":
		return cil.TextContent(orUnknown(inputStr(input, "file_path")))
	case "Bash":
		command := inputStr(input, "command")
		desc := inputStr(input, "description")
		codeBlock := cil.ContentBlock{Kind: cil.BlockCode, Code: command, Language: "bash"}
		if desc == "" {
			return cil.Content{Blocks: []cil.ContentBlock{codeBlock}}
		}
		return cil.Content{Blocks: []cil.ContentBlock{{Kind: cil.BlockText, Text: desc}, codeBlock}}
	default:
		return cil.EmptyContent()
	}
}
