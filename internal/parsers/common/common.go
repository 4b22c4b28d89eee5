// Package common holds transformation helpers shared by multiple vendor
// parsers: the heavy lifting of turning raw tool output into clean, typed
// content blocks so downstream consumers can stay dumb renderers.
package common

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/opensession/opensession-go/internal/cil"
)

// Attribute keys parsers attach to events. These are additive metadata,
// never required for an event to round-trip.
const (
	AttrSourceSchemaVersion = "source.schema_version"
	AttrSourceRawType       = "source.raw_type"
	AttrSemanticGroupID     = "semantic.group_id"
	AttrSemanticCallID      = "semantic.call_id"
	AttrSemanticToolKind    = "semantic.tool_kind"
)

// NewEventID mints a fresh event identifier for vendor formats that don't
// carry a native per-message id (Gemini, Amp, Cline, OpenCode, Codex),
// mirroring the uuid the HAIL format expects a Claude Code `uuid` field to
// supply natively.
func NewEventID() string {
	return uuid.NewString()
}

// SetFirst assigns *target = value if *target is still its zero value
// (first-wins semantics), replacing the repeated "if x == zero { x = val }"
// pattern parsers otherwise need when collecting session-level metadata.
func SetFirst(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

// NormalizeRoleLabel normalizes cross-tool role labels into a canonical
// role string. Returns "" when the label isn't recognized.
func NormalizeRoleLabel(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return "user"
	case "assistant", "agent", "model", "gemini":
		return "assistant"
	case "system":
		return "system"
	case "thinking", "reasoning", "thought":
		return "thinking"
	default:
		return ""
	}
}

// InferToolKind infers a semantic tool kind from a raw tool name.
func InferToolKind(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "other"
	}
	switch lower {
	case "read", "read_file", "view", "cat", "open", "fileread", "readfile", "list_dir", "ls":
		return "file_read"
	case "edit", "write", "create", "delete", "apply_patch", "str_replace_editor",
		"edit_file", "reapply", "write_file", "fileedit":
		return "file_write"
	case "bash", "shell", "exec_command", "run_terminal_cmd", "execute_command":
		return "shell"
	case "grep", "search", "code_search", "grep_search", "file_search", "glob", "find":
		return "search"
	case "fetch", "browser":
		return "web"
	}
	if strings.HasPrefix(lower, "web") {
		return "web"
	}
	if strings.Contains(lower, "task") || strings.Contains(lower, "subagent") {
		return "task"
	}
	return "other"
}

// AttachSourceAttrs adds non-breaking source metadata to an event's
// attribute map, skipping blank values.
func AttachSourceAttrs(attrs map[string]any, schemaVersion, rawType string) {
	if v := strings.TrimSpace(schemaVersion); v != "" {
		attrs[AttrSourceSchemaVersion] = v
	}
	if v := strings.TrimSpace(rawType); v != "" {
		attrs[AttrSourceRawType] = v
	}
}

// AttachSemanticAttrs adds non-breaking semantic metadata to an event's
// attribute map, skipping blank values.
func AttachSemanticAttrs(attrs map[string]any, groupID, callID, toolKind string) {
	if v := strings.TrimSpace(groupID); v != "" {
		attrs[AttrSemanticGroupID] = v
	}
	if v := strings.TrimSpace(callID); v != "" {
		attrs[AttrSemanticCallID] = v
	}
	if v := strings.TrimSpace(toolKind); v != "" {
		attrs[AttrSemanticToolKind] = v
	}
}

var systemReminderRe = regexp.MustCompile(`(?s)<system-reminder>.*?</system-reminder>`)

// StripSystemReminders removes <system-reminder>...</system-reminder> blocks
// from text and trims the result.
func StripSystemReminders(text string) string {
	return strings.TrimSpace(systemReminderRe.ReplaceAllString(text, ""))
}

// Recognizes "  1→code", "00001| code", and the tab-delimited "1\tcode"
// variant some cat/sed-style tools emit.
var lineNumRe = regexp.MustCompile(`^ *\d+[→|\t]`)
var lineNumCaptureRe = regexp.MustCompile(`^ *(\d+)(?:→|\| ?|\t)(.*)$`)

// IsLineNumberedOutput reports whether text looks like line-numbered file
// content (cat -n output with a "→" separator, or "00001|" format): at
// least 60% of its first five non-blank-counted lines match the prefix.
func IsLineNumberedOutput(text string) bool {
	lines := firstNLines(text, 5)
	if len(lines) == 0 {
		return false
	}
	matched := 0
	for _, l := range lines {
		if lineNumRe.MatchString(l) || strings.TrimSpace(l) == "" {
			matched++
		}
	}
	return float64(matched) >= float64(len(lines))*0.6
}

func firstNLines(text string, n int) []string {
	all := strings.Split(text, "\n")
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// ParseLineNumberedOutput strips line-number prefixes from text, returning
// the cleaned code and the starting line number (1 if none detected).
func ParseLineNumberedOutput(text string) (string, uint32) {
	startLine := uint32(1)
	var codeLines []string

	for _, line := range strings.Split(text, "\n") {
		if m := lineNumCaptureRe.FindStringSubmatch(line); m != nil {
			if len(codeLines) == 0 {
				if n, err := strconv.ParseUint(m[1], 10, 32); err == nil {
					startLine = uint32(n)
				}
			}
			codeLines = append(codeLines, m[2])
		} else if strings.TrimSpace(line) == "" {
			codeLines = append(codeLines, "")
		}
	}

	code := strings.TrimRight(strings.Join(codeLines, "\n"), " \t\n\r")
	return code, startLine
}

// DetectLanguage detects a source language from a file path's basename or
// extension. Returns "" when nothing matches.
func DetectLanguage(filePath string) string {
	basename := filePath
	if i := strings.LastIndex(filePath, "/"); i >= 0 {
		basename = filePath[i+1:]
	}

	switch basename {
	case "Dockerfile", "Makefile":
		return "bash"
	case "Cargo.toml", "pyproject.toml":
		return "toml"
	}

	i := strings.LastIndex(basename, ".")
	if i < 0 {
		return ""
	}
	ext := strings.ToLower(basename[i+1:])
	switch ext {
	case "ts", "tsx":
		return "typescript"
	case "js", "jsx":
		return "javascript"
	case "py":
		return "python"
	case "rs":
		return "rust"
	case "go":
		return "go"
	case "java":
		return "java"
	case "kt", "kts", "gradle":
		return "kotlin"
	case "swift":
		return "swift"
	case "rb":
		return "ruby"
	case "cpp", "c", "h", "hpp":
		return "cpp"
	case "cs":
		return "csharp"
	case "css", "scss":
		return "css"
	case "html", "svelte", "vue":
		return "html"
	case "xml":
		return "xml"
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	case "md":
		return "markdown"
	case "sql":
		return "sql"
	case "sh", "bash", "zsh":
		return "bash"
	case "diff":
		return "diff"
	case "properties":
		return "properties"
	default:
		return ""
	}
}

// ExtractTagContent extracts the content between the first "<tag>" and the
// first "</tag>" after it. Returns "", false when the tags aren't found, are
// out of order, or wrap only whitespace.
func ExtractTagContent(text, tag string) (string, bool) {
	open, close := "<"+tag+">", "</"+tag+">"
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	end := strings.Index(text, close)
	if end < 0 || start+len(open) > end {
		return "", false
	}
	content := strings.TrimSpace(text[start+len(open) : end])
	if content == "" {
		return "", false
	}
	return content, true
}

// ToolUseInfo carries the bits of a tool_use needed to build the content of
// its matching ToolResult.
type ToolUseInfo struct {
	Name     string
	FilePath string
}

// BuildToolResultContent builds structured Content for a ToolResult from
// raw text, detecting line-numbered file-read output and rendering it as a
// language-tagged Code block instead of plain text.
func BuildToolResultContent(rawText string, info ToolUseInfo) cil.Content {
	if rawText == "" {
		return cil.EmptyContent()
	}

	cleaned := StripSystemReminders(rawText)
	if strings.TrimSpace(cleaned) == "" {
		return cil.EmptyContent()
	}

	isReadTool := info.Name == "Read" || info.Name == "read_file" || info.Name == "read" || info.Name == "view"
	if isReadTool && IsLineNumberedOutput(cleaned) {
		code, startLine := ParseLineNumberedOutput(cleaned)
		language := ""
		if info.FilePath != "" {
			language = DetectLanguage(info.FilePath)
		}
		sl := startLine
		return cil.Content{Blocks: []cil.ContentBlock{{
			Kind:      cil.BlockCode,
			Code:      code,
			Language:  language,
			StartLine: &sl,
		}}}
	}

	return cil.TextContent(cleaned)
}
