// Package cursor parses Cursor's workspace SQLite database (a ".vscdb" file)
// into the canonical interaction log. Cursor stores chat state as
// JSON-encoded blobs in a flat key/value table; this package reads the
// composer/bubble rows out of it with database/sql over modernc.org/sqlite,
// a pure-Go driver that needs no cgo toolchain.
package cursor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opensession/opensession-go/internal/cil"
	"github.com/opensession/opensession-go/internal/parsers/common"
)

// Parser implements parsers.Parser for Cursor's .vscdb workspace database.
type Parser struct{}

func (Parser) Name() string { return "cursor" }

func (Parser) CanParse(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".vscdb")
}

// Parse ignores data (the caller reads the file for every other parser, but
// a SQLite database can't be parsed from an in-memory byte slice without a
// temp-file round trip) and instead opens filePath directly.
func (Parser) Parse(filePath string, _ []byte) (cil.Session, error) {
	db, err := sql.Open("sqlite", "file:"+filePath+"?mode=ro&immutable=1")
	if err != nil {
		return cil.Session{}, fmt.Errorf("cursor: open %s: %w", filePath, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT key, value FROM ItemTable WHERE key LIKE 'bubbleId:%' OR key LIKE 'composerData:%' ORDER BY key`)
	if err != nil {
		return cil.Session{}, fmt.Errorf("cursor: query ItemTable: %w", err)
	}
	defer rows.Close()

	var events []cil.Event
	var sessionID string

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return cil.Session{}, fmt.Errorf("cursor: scan row: %w", err)
		}
		if sessionID == "" {
			if parts := strings.SplitN(key, ":", 3); len(parts) >= 2 {
				sessionID = parts[1]
			}
		}
		var bubble bubbleRow
		if json.Unmarshal(value, &bubble) != nil {
			continue
		}
		events = append(events, bubbleToEvents(bubble)...)
	}
	if err := rows.Err(); err != nil {
		return cil.Session{}, fmt.Errorf("cursor: iterate rows: %w", err)
	}

	if sessionID == "" {
		sessionID = "unknown"
	}

	now := time.Now().UTC()
	createdAt, updatedAt := now, now
	if len(events) > 0 {
		createdAt, updatedAt = events[0].Timestamp, events[len(events)-1].Timestamp
	}

	s := cil.NewSession(sessionID, cil.Agent{Provider: "cursor", Model: "unknown", Tool: "cursor"})
	s.Context.Tags = []string{"cursor"}
	s.Context.CreatedAt = createdAt
	s.Context.UpdatedAt = updatedAt
	s.Events = events
	s.RecomputeStats()
	return s, nil
}

type bubbleRow struct {
	Type       int             `json:"type"` // 1 = user, 2 = assistant, per Cursor's bubble schema
	Text       string          `json:"text"`
	ToolFormer *toolFormerData `json:"toolFormerData"`
}

type toolFormerData struct {
	Tool   int             `json:"tool"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"rawArgs"`
	Result json.RawMessage `json:"result"`
}

func bubbleToEvents(b bubbleRow) []cil.Event {
	now := time.Now().UTC()
	var events []cil.Event

	text := strings.TrimSpace(b.Text)
	if text != "" {
		kind := cil.KindAgentMessage
		if b.Type == 1 {
			kind = cil.KindUserMessage
		}
		events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: now, Type: cil.EventType{Kind: kind}, Content: cil.TextContent(text)})
	}

	if b.ToolFormer != nil {
		toolID := b.ToolFormer.Tool
		toolName := resolveToolName(&toolID, b.ToolFormer.Name)
		var args map[string]any
		_ = json.Unmarshal(b.ToolFormer.Args, &args)
		eventType := classifyCursorTool(toolName, args)
		content := toolCallContent(toolName, args)
		events = append(events, cil.Event{EventID: common.NewEventID(), Timestamp: now, Type: eventType, Content: content})
	}

	return events
}

// resolveToolName maps Cursor's numeric tool ids to human-readable names,
// falling back to the raw name field.
func resolveToolName(toolID *int, name string) string {
	if toolID != nil {
		switch *toolID {
		case 3:
			return "grep_search"
		case 5:
			return "read_file"
		case 6:
			return "list_dir"
		case 7:
			return "edit_file"
		case 8:
			return "file_search"
		case 12:
			return "reapply"
		case 15:
			return "run_terminal_cmd"
		case 18:
			return "web_search"
		default:
			if name != "" {
				return name
			}
			return fmt.Sprintf("tool_%d", *toolID)
		}
	}
	if name != "" {
		return name
	}
	return "unknown_tool"
}

func argStr(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func classifyCursorTool(toolName string, args map[string]any) cil.EventType {
	switch toolName {
	case "edit_file", "reapply":
		return cil.NewFileEdit(orUnknown(argStr(args, "target_file")), "")
	case "read_file":
		return cil.NewFileRead(orUnknown(argStr(args, "target_file", "file_path")))
	case "list_dir":
		p := argStr(args, "relative_workspace_path", "path")
		if p == "" {
			p = "."
		}
		return cil.NewToolCall("list_dir: " + p)
	case "run_terminal_cmd":
		return cil.NewShellCommand(argStr(args, "command"), nil)
	case "grep_search":
		return cil.EventType{Kind: cil.KindCodeSearch, Query: argStr(args, "query", "search_term")}
	case "file_search":
		pattern := argStr(args, "query", "pattern")
		if pattern == "" {
			pattern = "*"
		}
		return cil.EventType{Kind: cil.KindFileSearch, Pattern: pattern}
	case "web_search":
		return cil.EventType{Kind: cil.KindWebSearch, Query: argStr(args, "query", "search_query")}
	default:
		return cil.NewToolCall(toolName)
	}
}

func toolCallContent(toolName string, args map[string]any) cil.Content {
	switch toolName {
	case "edit_file", "reapply":
		path := orUnknown(argStr(args, "target_file"))
		blocks := []cil.ContentBlock{{Kind: cil.BlockText, Text: path}}
		if edit := argStr(args, "code_edit"); edit != "" {
			blocks = append(blocks, cil.ContentBlock{Kind: cil.BlockCode, Code: edit})
		}
		return cil.Content{Blocks: blocks}
	case "read_file":
		return cil.TextContent(orUnknown(argStr(args, "target_file", "file_path")))
	default:
		return cil.EmptyContent()
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
