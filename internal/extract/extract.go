// Package extract derives upload-time metadata (title, description, tags,
// touched files, error flags) from a session without requiring the caller to
// walk its events by hand. It consolidates logic that would otherwise be
// duplicated across the sync push path and the handoff builder.
package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/opensession/opensession-go/internal/cil"
)

// UploadMetadata is what a sync push or handoff build needs to know about a
// session beyond its raw HAIL bytes.
type UploadMetadata struct {
	Title            string
	Description      string
	Tags             string
	CreatedAt        string
	WorkingDirectory string
	FilesModified    string // JSON array, empty if none
	FilesRead        string // JSON array, empty if none
	HasErrors        bool
}

// UploadMetadataFromSession extracts upload metadata from a session,
// auto-generating title/description from the first user messages when the
// session's own context metadata is empty.
func UploadMetadataFromSession(s cil.Session) UploadMetadata {
	title := s.Context.Title
	if title == "" {
		if t := FirstUserText(s); t != "" {
			title = TruncateStr(t, 80)
		}
	}

	description := s.Context.Description
	if description == "" {
		if d := UserTexts(s, 3); d != "" {
			description = TruncateStr(d, 500)
		}
	}

	var tags string
	if len(s.Context.Tags) > 0 {
		tags = strings.Join(s.Context.Tags, ",")
	}

	workingDirectory := stringAttr(s.Context.Attributes, "cwd")
	if workingDirectory == "" {
		workingDirectory = stringAttr(s.Context.Attributes, "working_directory")
	}

	filesModified, filesRead, hasErrors := FileMetadata(s)

	return UploadMetadata{
		Title:            title,
		Description:      description,
		Tags:             tags,
		CreatedAt:        s.Context.CreatedAt.Format(rfc3339Nano),
		WorkingDirectory: workingDirectory,
		FilesModified:    filesModified,
		FilesRead:        filesRead,
		HasErrors:        hasErrors,
	}
}

const rfc3339Nano = "2006-01-02T15:04:05.999999999Z07:00"

func stringAttr(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// FileMetadata derives the files a session touched and whether any command
// or tool call in it failed. files_read excludes any path that also appears
// in files_modified: a file that was both read and edited is reported only
// as modified. Both results are JSON arrays of sorted, deduplicated paths,
// empty string when there is nothing to report.
func FileMetadata(s cil.Session) (filesModified, filesRead string, hasErrors bool) {
	modified := make(map[string]struct{})
	read := make(map[string]struct{})

	for _, ev := range s.Events {
		switch ev.Type.Kind {
		case cil.KindFileEdit, cil.KindFileCreate, cil.KindFileDelete:
			modified[ev.Type.Path] = struct{}{}
		case cil.KindFileRead:
			read[ev.Type.Path] = struct{}{}
		case cil.KindShellCommand:
			if ev.Type.ExitCode != nil && *ev.Type.ExitCode != 0 {
				hasErrors = true
			}
		case cil.KindToolResult:
			if ev.Type.IsError {
				hasErrors = true
			}
		}
	}

	for p := range modified {
		delete(read, p)
	}

	filesModified = jsonSortedKeys(modified)
	filesRead = jsonSortedKeys(read)
	return filesModified, filesRead, hasErrors
}

func jsonSortedKeys(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	raw, err := json.Marshal(paths)
	if err != nil {
		return ""
	}
	return string(raw)
}

func textFromBlocks(blocks []cil.ContentBlock) string {
	for _, b := range blocks {
		if b.Kind != cil.BlockText {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			return t
		}
	}
	return ""
}

// FirstUserText returns the text of the first UserMessage event, or "" if
// there is none.
func FirstUserText(s cil.Session) string {
	for _, ev := range s.Events {
		if ev.Type.Kind != cil.KindUserMessage {
			continue
		}
		if t := textFromBlocks(ev.Content.Blocks); t != "" {
			return t
		}
	}
	return ""
}

// UserTexts joins the text of the first max UserMessage events with a space,
// or "" if none have text.
func UserTexts(s cil.Session, max int) string {
	var texts []string
	for _, ev := range s.Events {
		if len(texts) >= max {
			break
		}
		if ev.Type.Kind != cil.KindUserMessage {
			continue
		}
		if t := textFromBlocks(ev.Content.Blocks); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}

// ChangedPaths extracts the modified and deleted file paths touched by
// events, each sorted and deduplicated. A file deleted then re-created in
// the same slice stays in modified only.
func ChangedPaths(events []cil.Event) (modified, deleted []string) {
	modifiedSet := make(map[string]struct{})
	deletedSet := make(map[string]struct{})
	var modifiedOrder, deletedOrder []string

	addOnce := func(set map[string]struct{}, order *[]string, path string) {
		if _, ok := set[path]; ok {
			return
		}
		set[path] = struct{}{}
		*order = append(*order, path)
	}

	for _, ev := range events {
		switch ev.Type.Kind {
		case cil.KindFileEdit, cil.KindFileCreate:
			addOnce(modifiedSet, &modifiedOrder, ev.Type.Path)
		case cil.KindFileDelete:
			addOnce(deletedSet, &deletedOrder, ev.Type.Path)
		}
	}

	sort.Strings(modifiedOrder)
	sort.Strings(deletedOrder)

	deleted = deletedOrder[:0:0]
	for _, d := range deletedOrder {
		if _, stillModified := modifiedSet[d]; !stillModified {
			deleted = append(deleted, d)
		}
	}
	return modifiedOrder, deleted
}

// TruncateStr truncates s to at most maxLen runes, appending "..." when
// truncated. Truncation is codepoint-safe: it never splits a multi-byte
// rune, matching the char-boundary-safe semantics this was ported from.
func TruncateStr(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	end := maxLen - 3
	if end < 0 {
		end = 0
	}
	return string(runes[:end]) + "..."
}
