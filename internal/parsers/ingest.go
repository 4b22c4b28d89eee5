package parsers

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/opensession/opensession-go/internal/cil"
)

// ErrInvalidParserHint is returned when the caller names a parser hint that
// isn't registered.
type ErrInvalidParserHint struct{ Hint string }

func (e *ErrInvalidParserHint) Error() string {
	return fmt.Sprintf("parsers: invalid parser hint %q", e.Hint)
}

// ErrParserSelectionRequired is returned when detection remains ambiguous:
// two or more viable candidates, or one candidate plus a hint that already
// failed.
type ErrParserSelectionRequired struct{ Candidates []Candidate }

func (e *ErrParserSelectionRequired) Error() string {
	return fmt.Sprintf("parsers: parser selection required among %d candidates", len(e.Candidates))
}

// ErrParseFailed is returned when every attempted candidate failed to parse.
type ErrParseFailed struct{ Messages []string }

func (e *ErrParseFailed) Error() string {
	if len(e.Messages) == 0 {
		return "parsers: parse failed"
	}
	return fmt.Sprintf("parsers: parse failed: %v", e.Messages)
}

// PreviewResult is what Preview returns on success.
type PreviewResult struct {
	ParserUsed    string
	Candidates    []Candidate
	Session       cil.Session
	Warnings      []string
	NativeAdapter string // set when the winning parser needed no semantic transform (hail passthrough)
}

// Registry holds the known vendor parsers by id.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry from the given parsers, keyed by Name().
func NewRegistry(ps ...Parser) *Registry {
	m := make(map[string]Parser, len(ps))
	for _, p := range ps {
		m[p.Name()] = p
	}
	return &Registry{parsers: m}
}

// Preview runs the ingest-preview algorithm: detect candidates, try an
// optional hint first, then fall through candidates in confidence order,
// surfacing ambiguity rather than guessing past it silently.
func (r *Registry) Preview(filename string, data []byte, hint string) (PreviewResult, error) {
	if !utf8.Valid(data) {
		return PreviewResult{}, &ErrParseFailed{Messages: []string{"not UTF-8"}}
	}

	candidates := DetectCandidates(filename, data)

	var warnings []string
	var failures []string
	attempted := make(map[string]bool)

	if hint != "" {
		if _, ok := r.parsers[hint]; !ok {
			return PreviewResult{}, &ErrInvalidParserHint{Hint: hint}
		}
		attempted[hint] = true
		session, err := r.parsers[hint].Parse(filename, data)
		if err == nil {
			return PreviewResult{
				ParserUsed:    hint,
				Candidates:    candidates,
				Session:       session,
				Warnings:      warnings,
				NativeAdapter: nativeAdapter(hint),
			}, nil
		}
		warnings = append(warnings, fmt.Sprintf("hint %q failed: %v", hint, err))
		failures = append(failures, fmt.Sprintf("%s: %v", hint, err))
	}

	remaining := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if attempted[c.ParserID] {
			continue
		}
		remaining = append(remaining, c)
	}

	for _, c := range remaining {
		p, ok := r.parsers[c.ParserID]
		if !ok {
			continue
		}
		attempted[c.ParserID] = true
		session, err := p.Parse(filename, data)
		if err == nil {
			return PreviewResult{
				ParserUsed:    c.ParserID,
				Candidates:    candidates,
				Session:       session,
				Warnings:      warnings,
				NativeAdapter: nativeAdapter(c.ParserID),
			}, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", c.ParserID, err))
	}

	ambiguous := len(remaining) >= 2 || (len(remaining) == 1 && hint != "")
	if ambiguous {
		sorted := make([]Candidate, len(candidates))
		copy(sorted, candidates)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Confidence != sorted[j].Confidence {
				return sorted[i].Confidence > sorted[j].Confidence
			}
			return sorted[i].ParserID < sorted[j].ParserID
		})
		return PreviewResult{}, &ErrParserSelectionRequired{Candidates: sorted}
	}

	return PreviewResult{}, &ErrParseFailed{Messages: failures}
}

func nativeAdapter(parserID string) string {
	if parserID == "hail" {
		return "hail"
	}
	return ""
}
