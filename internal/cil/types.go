// Package cil defines the canonical interaction log: the normalized,
// vendor-neutral representation every transcript parser produces and every
// downstream component (index, handoff builder, sync) consumes.
package cil

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentVersion is the HAIL (Human AI Interaction Log) format version this
// package emits. Older readers should treat a version mismatch as advisory,
// not fatal.
const CurrentVersion = "hail-1.0.0"

// Session is the root of a HAIL trace: one AI coding-assistant conversation.
type Session struct {
	Version   string    `json:"version"`
	SessionID string    `json:"session_id"`
	Agent     Agent     `json:"agent"`
	Context   Context   `json:"context"`
	Events    []Event   `json:"events"`
	Stats     Stats     `json:"stats"`
}

// NewSession builds an empty session with stamped version and zero stats.
func NewSession(sessionID string, agent Agent) Session {
	now := time.Now().UTC()
	return Session{
		Version:   CurrentVersion,
		SessionID: sessionID,
		Agent:     agent,
		Context: Context{
			Tags:       []string{},
			CreatedAt:  now,
			UpdatedAt:  now,
			Attributes: map[string]any{},
		},
		Events: []Event{},
	}
}

// RecomputeStats derives Stats from Events, replacing whatever was there.
// Grounded on opensession_core::trace::Session::recompute_stats: message and
// tool-call counts are a closed switch over EventType kinds, task_count is
// the number of distinct non-empty task ids, and duration is the gap between
// the first and last event, floored at zero.
func (s *Session) RecomputeStats() {
	var messageCount, toolCallCount uint64
	taskIDs := make(map[string]struct{})

	for _, ev := range s.Events {
		switch ev.Type.Kind {
		case KindUserMessage, KindAgentMessage:
			messageCount++
		case KindToolCall, KindFileRead, KindCodeSearch, KindFileSearch:
			toolCallCount++
		}
		if ev.TaskID != "" {
			taskIDs[ev.TaskID] = struct{}{}
		}
	}

	var durationSeconds uint64
	if len(s.Events) > 0 {
		first := s.Events[0].Timestamp
		last := s.Events[len(s.Events)-1].Timestamp
		if d := last.Sub(first); d > 0 {
			durationSeconds = uint64(d.Seconds())
		}
	}

	s.Stats = Stats{
		EventCount:    uint64(len(s.Events)),
		MessageCount:  messageCount,
		ToolCallCount: toolCallCount,
		TaskCount:     uint64(len(taskIDs)),
		DurationSeconds: durationSeconds,
	}
}

// Agent identifies which AI coding assistant produced a session.
type Agent struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Tool        string `json:"tool"`
	ToolVersion string `json:"tool_version,omitempty"`
}

// Context carries session-level metadata that parsers populate best-effort.
type Context struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Event is one entry in a session's flat timeline.
type Event struct {
	EventID    string         `json:"event_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       EventType      `json:"event_type"`
	TaskID     string         `json:"task_id,omitempty"`
	Content    Content        `json:"content"`
	DurationMs *uint64        `json:"duration_ms,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Kind enumerates the closed set of event variants. Unlike Rust's tagged
// enum, Go has no sum type, so EventType carries Kind plus the union of
// fields any variant may use; MarshalJSON/UnmarshalJSON project that down to
// the wire shape `{"type": Kind, "data": {...}}` so the format stays
// interoperable with other HAIL producers/consumers.
type Kind string

const (
	KindUserMessage   Kind = "UserMessage"
	KindAgentMessage  Kind = "AgentMessage"
	KindSystemMessage Kind = "SystemMessage"
	KindThinking      Kind = "Thinking"
	KindToolCall      Kind = "ToolCall"
	KindToolResult    Kind = "ToolResult"
	KindFileRead      Kind = "FileRead"
	KindCodeSearch    Kind = "CodeSearch"
	KindFileSearch    Kind = "FileSearch"
	KindFileEdit      Kind = "FileEdit"
	KindFileCreate    Kind = "FileCreate"
	KindFileDelete    Kind = "FileDelete"
	KindShellCommand  Kind = "ShellCommand"
	KindImageGenerate Kind = "ImageGenerate"
	KindVideoGenerate Kind = "VideoGenerate"
	KindAudioGenerate Kind = "AudioGenerate"
	KindWebSearch     Kind = "WebSearch"
	KindWebFetch      Kind = "WebFetch"
	KindTaskStart     Kind = "TaskStart"
	KindTaskEnd       Kind = "TaskEnd"
	KindCustom        Kind = "Custom"
)

// EventType is the discriminated payload of an Event. Only the fields
// relevant to Kind are meaningful; callers should construct these via the
// New* helpers rather than populating fields by hand.
type EventType struct {
	Kind Kind

	Name     string // ToolCall.name, ToolResult.name
	IsError  bool   // ToolResult.is_error
	CallID   string // ToolResult.call_id (optional)
	Path     string // FileRead/FileEdit/FileCreate/FileDelete.path
	Diff     string // FileEdit.diff (optional)
	Query    string // CodeSearch.query, WebSearch.query
	Pattern  string // FileSearch.pattern
	Command  string // ShellCommand.command
	ExitCode *int   // ShellCommand.exit_code (optional)
	Prompt   string // Image/Video/AudioGenerate.prompt
	URL      string // WebFetch.url
	Title    string // TaskStart.title (optional)
	Summary  string // TaskEnd.summary (optional)
	Custom   string // Custom.kind
}

func NewToolCall(name string) EventType      { return EventType{Kind: KindToolCall, Name: name} }
func NewFileRead(path string) EventType      { return EventType{Kind: KindFileRead, Path: path} }
func NewFileEdit(path, diff string) EventType {
	return EventType{Kind: KindFileEdit, Path: path, Diff: diff}
}
func NewShellCommand(command string, exitCode *int) EventType {
	return EventType{Kind: KindShellCommand, Command: command, ExitCode: exitCode}
}
func NewToolResult(name string, isError bool, callID string) EventType {
	return EventType{Kind: KindToolResult, Name: name, IsError: isError, CallID: callID}
}

type wireEventType struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (e EventType) MarshalJSON() ([]byte, error) {
	var data any
	switch e.Kind {
	case KindToolCall:
		data = struct {
			Name string `json:"name"`
		}{e.Name}
	case KindToolResult:
		data = struct {
			Name    string `json:"name"`
			IsError bool   `json:"is_error"`
			CallID  string `json:"call_id,omitempty"`
		}{e.Name, e.IsError, e.CallID}
	case KindFileRead:
		data = struct {
			Path string `json:"path"`
		}{e.Path}
	case KindCodeSearch:
		data = struct {
			Query string `json:"query"`
		}{e.Query}
	case KindFileSearch:
		data = struct {
			Pattern string `json:"pattern"`
		}{e.Pattern}
	case KindFileEdit:
		data = struct {
			Path string `json:"path"`
			Diff string `json:"diff,omitempty"`
		}{e.Path, e.Diff}
	case KindFileCreate:
		data = struct {
			Path string `json:"path"`
		}{e.Path}
	case KindFileDelete:
		data = struct {
			Path string `json:"path"`
		}{e.Path}
	case KindShellCommand:
		data = struct {
			Command  string `json:"command"`
			ExitCode *int   `json:"exit_code,omitempty"`
		}{e.Command, e.ExitCode}
	case KindImageGenerate, KindVideoGenerate, KindAudioGenerate:
		data = struct {
			Prompt string `json:"prompt"`
		}{e.Prompt}
	case KindWebSearch:
		data = struct {
			Query string `json:"query"`
		}{e.Query}
	case KindWebFetch:
		data = struct {
			URL string `json:"url"`
		}{e.URL}
	case KindTaskStart:
		if e.Title == "" {
			data = struct{}{}
		} else {
			data = struct {
				Title string `json:"title,omitempty"`
			}{e.Title}
		}
	case KindTaskEnd:
		if e.Summary == "" {
			data = struct{}{}
		} else {
			data = struct {
				Summary string `json:"summary,omitempty"`
			}{e.Summary}
		}
	case KindCustom:
		data = struct {
			Kind string `json:"kind"`
		}{e.Custom}
	default:
		// UserMessage, AgentMessage, SystemMessage, Thinking carry no data.
		return json.Marshal(wireEventType{Type: string(e.Kind)})
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event type data for %s: %w", e.Kind, err)
	}
	return json.Marshal(wireEventType{Type: string(e.Kind), Data: raw})
}

func (e *EventType) UnmarshalJSON(b []byte) error {
	var w wireEventType
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("unmarshal event type envelope: %w", err)
	}
	e.Kind = Kind(w.Type)

	unmarshalData := func(v any) error {
		if len(w.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(w.Data, v); err != nil {
			return fmt.Errorf("unmarshal event type data for %s: %w", e.Kind, err)
		}
		return nil
	}

	switch e.Kind {
	case KindToolCall:
		var d struct {
			Name string `json:"name"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Name = d.Name
	case KindToolResult:
		var d struct {
			Name    string `json:"name"`
			IsError bool   `json:"is_error"`
			CallID  string `json:"call_id"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Name, e.IsError, e.CallID = d.Name, d.IsError, d.CallID
	case KindFileRead, KindFileCreate, KindFileDelete:
		var d struct {
			Path string `json:"path"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Path = d.Path
	case KindCodeSearch:
		var d struct {
			Query string `json:"query"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Query = d.Query
	case KindFileSearch:
		var d struct {
			Pattern string `json:"pattern"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Pattern = d.Pattern
	case KindFileEdit:
		var d struct {
			Path string `json:"path"`
			Diff string `json:"diff"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Path, e.Diff = d.Path, d.Diff
	case KindShellCommand:
		var d struct {
			Command  string `json:"command"`
			ExitCode *int   `json:"exit_code"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Command, e.ExitCode = d.Command, d.ExitCode
	case KindImageGenerate, KindVideoGenerate, KindAudioGenerate:
		var d struct {
			Prompt string `json:"prompt"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Prompt = d.Prompt
	case KindWebSearch:
		var d struct {
			Query string `json:"query"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Query = d.Query
	case KindWebFetch:
		var d struct {
			URL string `json:"url"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.URL = d.URL
	case KindTaskStart:
		var d struct {
			Title string `json:"title"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Title = d.Title
	case KindTaskEnd:
		var d struct {
			Summary string `json:"summary"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Summary = d.Summary
	case KindCustom:
		var d struct {
			Kind string `json:"kind"`
		}
		if err := unmarshalData(&d); err != nil {
			return err
		}
		e.Custom = d.Kind
	}
	return nil
}

// Content is the multimodal payload attached to an Event.
type Content struct {
	Blocks []ContentBlock `json:"blocks"`
}

// EmptyContent returns Content with no blocks.
func EmptyContent() Content { return Content{Blocks: []ContentBlock{}} }

// TextContent wraps a single text block.
func TextContent(text string) Content {
	return Content{Blocks: []ContentBlock{{Kind: BlockText, Text: text}}}
}

// CodeContent wraps a single code block with no start line.
func CodeContent(code string, language string) Content {
	return Content{Blocks: []ContentBlock{{Kind: BlockCode, Code: code, Language: language}}}
}

// BlockKind enumerates ContentBlock variants.
type BlockKind string

const (
	BlockText      BlockKind = "Text"
	BlockCode      BlockKind = "Code"
	BlockImage     BlockKind = "Image"
	BlockVideo     BlockKind = "Video"
	BlockAudio     BlockKind = "Audio"
	BlockFile      BlockKind = "File"
	BlockJSON      BlockKind = "Json"
	BlockReference BlockKind = "Reference"
)

// ContentBlock is one multimodal unit within Content.
type ContentBlock struct {
	Kind BlockKind

	Text      string          // Text.text
	Code      string          // Code.code
	Language  string          // Code.language (optional)
	StartLine *uint32         // Code.start_line (optional)
	URL       string          // Image/Video/Audio.url
	Alt       string          // Image.alt (optional)
	MIME      string          // Image/Video/Audio.mime
	Path      string          // File.path
	FileBody  string          // File.content (optional)
	Data      json.RawMessage // Json.data
	URI       string          // Reference.uri
	MediaType string          // Reference.media_type
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	base := map[string]any{"type": string(b.Kind)}
	switch b.Kind {
	case BlockText:
		base["text"] = b.Text
	case BlockCode:
		base["code"] = b.Code
		if b.Language != "" {
			base["language"] = b.Language
		}
		if b.StartLine != nil {
			base["start_line"] = *b.StartLine
		}
	case BlockImage:
		base["url"] = b.URL
		if b.Alt != "" {
			base["alt"] = b.Alt
		}
		base["mime"] = b.MIME
	case BlockVideo, BlockAudio:
		base["url"] = b.URL
		base["mime"] = b.MIME
	case BlockFile:
		base["path"] = b.Path
		if b.FileBody != "" {
			base["content"] = b.FileBody
		}
	case BlockJSON:
		var v any
		if len(b.Data) > 0 {
			if err := json.Unmarshal(b.Data, &v); err != nil {
				return nil, fmt.Errorf("unmarshal content block json data: %w", err)
			}
		}
		base["data"] = v
	case BlockReference:
		base["uri"] = b.URI
		base["media_type"] = b.MediaType
	}
	return json.Marshal(base)
}

func (b *ContentBlock) UnmarshalJSON(raw []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("unmarshal content block: %w", err)
	}
	var kind string
	if err := json.Unmarshal(m["type"], &kind); err != nil {
		return fmt.Errorf("unmarshal content block type: %w", err)
	}
	b.Kind = BlockKind(kind)

	str := func(key string) string {
		var s string
		if raw, ok := m[key]; ok {
			_ = json.Unmarshal(raw, &s)
		}
		return s
	}

	switch b.Kind {
	case BlockText:
		b.Text = str("text")
	case BlockCode:
		b.Code = str("code")
		b.Language = str("language")
		if raw, ok := m["start_line"]; ok {
			var n uint32
			if err := json.Unmarshal(raw, &n); err != nil {
				return fmt.Errorf("unmarshal content block start_line: %w", err)
			}
			b.StartLine = &n
		}
	case BlockImage:
		b.URL, b.Alt, b.MIME = str("url"), str("alt"), str("mime")
	case BlockVideo, BlockAudio:
		b.URL, b.MIME = str("url"), str("mime")
	case BlockFile:
		b.Path, b.FileBody = str("path"), str("content")
	case BlockJSON:
		b.Data = m["data"]
	case BlockReference:
		b.URI, b.MediaType = str("uri"), str("media_type")
	}
	return nil
}

// Stats is the aggregate summary recomputed by Session.RecomputeStats.
type Stats struct {
	EventCount      uint64 `json:"event_count"`
	MessageCount    uint64 `json:"message_count"`
	ToolCallCount   uint64 `json:"tool_call_count"`
	TaskCount       uint64 `json:"task_count"`
	DurationSeconds uint64 `json:"duration_seconds"`
}
