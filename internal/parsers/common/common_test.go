package common

import "testing"

func TestStripSystemReminders(t *testing.T) {
	input := "hello\n<system-reminder>\nsome reminder\n</system-reminder>\nworld"
	if got := StripSystemReminders(input); got != "hello\n\nworld" {
		t.Errorf("got %q", got)
	}
}

func TestStripSystemRemindersMultiple(t *testing.T) {
	input := "<system-reminder>first</system-reminder>text<system-reminder>second</system-reminder>"
	if got := StripSystemReminders(input); got != "text" {
		t.Errorf("got %q", got)
	}
}

func TestIsLineNumberedCatN(t *testing.T) {
	text := "     1→use std::io;\n     2→\n     3→fn main() {\n     4→    println!(\"hello\");\n     5→}"
	if !IsLineNumberedOutput(text) {
		t.Error("expected line-numbered")
	}
}

func TestIsLineNumberedPipeFormat(t *testing.T) {
	text := "00001| /* Import CSS modules */\n00002| @import 'reset.css';\n00003| \n00004| body {"
	if !IsLineNumberedOutput(text) {
		t.Error("expected line-numbered")
	}
}

func TestIsLineNumberedNot(t *testing.T) {
	text := "This is just regular text\nwith no line numbers"
	if IsLineNumberedOutput(text) {
		t.Error("expected not line-numbered")
	}
}

func TestParseLineNumberedCatN(t *testing.T) {
	text := "     1→use std::io;\n     2→\n     3→fn main() {}"
	code, start := ParseLineNumberedOutput(text)
	if start != 1 {
		t.Errorf("start = %d, want 1", start)
	}
	if code != "use std::io;\n\nfn main() {}" {
		t.Errorf("code = %q", code)
	}
}

func TestParseLineNumberedPipeFormat(t *testing.T) {
	text := "00001| /* CSS */\n00002| body {\n00003|   color: red;\n00004| }"
	code, start := ParseLineNumberedOutput(text)
	if start != 1 {
		t.Errorf("start = %d, want 1", start)
	}
	if code != "/* CSS */\nbody {\n  color: red;\n}" {
		t.Errorf("code = %q", code)
	}
}

func TestParseLineNumberedOffset(t *testing.T) {
	text := "    10→    let x = 1;\n    11→    let y = 2;"
	code, start := ParseLineNumberedOutput(text)
	if start != 10 {
		t.Errorf("start = %d, want 10", start)
	}
	if code != "    let x = 1;\n    let y = 2;" {
		t.Errorf("code = %q", code)
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"/foo/bar.rs":  "rust",
		"/foo/bar.ts":  "typescript",
		"/foo/bar.py":  "python",
		"Dockerfile":   "bash",
		"/foo/bar.kt":  "kotlin",
		"/foo/bar.xyz": "",
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestExtractTagContent(t *testing.T) {
	if got, ok := ExtractTagContent("<task>\nhello world\n</task>", "task"); !ok || got != "hello world" {
		t.Errorf("got %q, %v", got, ok)
	}
	if got, ok := ExtractTagContent("<user_message>hi</user_message>", "user_message"); !ok || got != "hi" {
		t.Errorf("got %q, %v", got, ok)
	}
	if _, ok := ExtractTagContent("<task></task>", "task"); ok {
		t.Error("expected no match for empty tag body")
	}
	if _, ok := ExtractTagContent("no tags here", "task"); ok {
		t.Error("expected no match")
	}
}

func TestBuildToolResultContentReadCatN(t *testing.T) {
	info := ToolUseInfo{Name: "Read", FilePath: "/tmp/test.rs"}
	content := BuildToolResultContent("     1→use std::io;\n     2→fn main() {}", info)
	if len(content.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(content.Blocks))
	}
	b := content.Blocks[0]
	if b.Kind != "Code" || b.Code != "use std::io;\nfn main() {}" || b.Language != "rust" || b.StartLine == nil || *b.StartLine != 1 {
		t.Errorf("block = %+v", b)
	}
}

func TestBuildToolResultContentReadPipeFormat(t *testing.T) {
	info := ToolUseInfo{Name: "read_file", FilePath: "/tmp/style.css"}
	content := BuildToolResultContent("00001| /* CSS */\n00002| body {\n00003|   color: red;\n00004| }", info)
	if len(content.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(content.Blocks))
	}
	b := content.Blocks[0]
	if b.Code != "/* CSS */\nbody {\n  color: red;\n}" || b.Language != "css" || b.StartLine == nil || *b.StartLine != 1 {
		t.Errorf("block = %+v", b)
	}
}

func TestBuildToolResultContentWithReminders(t *testing.T) {
	info := ToolUseInfo{Name: "Read", FilePath: "/tmp/test.txt"}
	content := BuildToolResultContent("     1→hello\n<system-reminder>ignore me</system-reminder>\n     2→world", info)
	if len(content.Blocks) != 1 {
		t.Fatalf("blocks = %d", len(content.Blocks))
	}
	b := content.Blocks[0]
	if b.Code != "hello\n\nworld" {
		t.Errorf("code = %q", b.Code)
	}
}

func TestBuildToolResultContentNonRead(t *testing.T) {
	info := ToolUseInfo{Name: "Bash"}
	content := BuildToolResultContent("some output<system-reminder>r</system-reminder>", info)
	if len(content.Blocks) != 1 || content.Blocks[0].Kind != "Text" || content.Blocks[0].Text != "some output" {
		t.Errorf("blocks = %+v", content.Blocks)
	}
}

func TestNormalizeRoleLabel(t *testing.T) {
	cases := map[string]string{
		"user": "user", "assistant": "assistant", "gemini": "assistant",
		"system": "system", "reasoning": "thinking", "unknown": "",
	}
	for in, want := range cases {
		if got := NormalizeRoleLabel(in); got != want {
			t.Errorf("NormalizeRoleLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInferToolKind(t *testing.T) {
	cases := map[string]string{
		"Read": "file_read", "edit_file": "file_write", "exec_command": "shell",
		"WebSearch": "web", "Task": "task", "custom_tool": "other",
	}
	for in, want := range cases {
		if got := InferToolKind(in); got != want {
			t.Errorf("InferToolKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAttachSourceAndSemanticAttrs(t *testing.T) {
	attrs := map[string]any{}
	AttachSourceAttrs(attrs, "v3", "bubble")
	AttachSemanticAttrs(attrs, "turn-1", "call-1", "shell")

	if attrs[AttrSourceSchemaVersion] != "v3" {
		t.Errorf("schema version = %v", attrs[AttrSourceSchemaVersion])
	}
	if attrs[AttrSourceRawType] != "bubble" {
		t.Errorf("raw type = %v", attrs[AttrSourceRawType])
	}
	if attrs[AttrSemanticGroupID] != "turn-1" {
		t.Errorf("group id = %v", attrs[AttrSemanticGroupID])
	}
	if attrs[AttrSemanticCallID] != "call-1" {
		t.Errorf("call id = %v", attrs[AttrSemanticCallID])
	}
	if attrs[AttrSemanticToolKind] != "shell" {
		t.Errorf("tool kind = %v", attrs[AttrSemanticToolKind])
	}
}
