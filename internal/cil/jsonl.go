package cil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors for the HAIL JSONL reader contract (spec §4.A): a missing
// first line, a first line whose type isn't "header", and malformed JSON
// each get their own matchable error instead of one generic parse failure.
var (
	ErrMissingHeader      = errors.New("cil: missing header line")
	ErrUnexpectedLineType = errors.New("cil: unexpected line type")
)

// LineError wraps a malformed-JSON failure with the 1-based number of the
// non-empty line it occurred on (blank lines are not counted), so callers
// can report "line 4: ..." diagnostics.
type LineError struct {
	Line  int
	Cause error
}

func (e *LineError) Error() string { return fmt.Sprintf("cil: line %d: %v", e.Line, e.Cause) }
func (e *LineError) Unwrap() error { return e.Cause }

type lineEnvelope struct {
	Type string `json:"type"`
}

type wireHeader struct {
	Type      string  `json:"type"`
	Version   string  `json:"version"`
	SessionID string  `json:"session_id"`
	Agent     Agent   `json:"agent"`
	Context   Context `json:"context"`
}

type wireEvent struct {
	Type string `json:"type"`
	Event
}

type wireStats struct {
	Type string `json:"type"`
	Stats
}

// WriteJSONL writes a Session in HAIL JSONL form: a header line, one line
// per event in order, then a trailing stats line. Stats are written exactly
// as they are on s — callers that mutated events should call
// RecomputeStats first.
func WriteJSONL(w io.Writer, s Session) error {
	bw := bufio.NewWriter(w)

	if err := writeJSONLine(bw, wireHeader{Type: "header", Version: s.Version, SessionID: s.SessionID, Agent: s.Agent, Context: s.Context}); err != nil {
		return fmt.Errorf("write jsonl header: %w", err)
	}
	for i, ev := range s.Events {
		if err := writeJSONLine(bw, wireEvent{Type: "event", Event: ev}); err != nil {
			return fmt.Errorf("write jsonl event %d: %w", i, err)
		}
	}
	if err := writeJSONLine(bw, wireStats{Type: "stats", Stats: s.Stats}); err != nil {
		return fmt.Errorf("write jsonl stats: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return nil
}

func writeJSONLine(w *bufio.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// ToJSONLString renders a Session as a HAIL JSONL string.
func ToJSONLString(s Session) (string, error) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return sc
}

func nonEmptyLines(sc *bufio.Scanner) func() ([]byte, bool, error) {
	return func() ([]byte, bool, error) {
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			return line, true, nil
		}
		return nil, false, sc.Err()
	}
}

// ReadJSONL parses a full HAIL JSONL stream into a Session. Per spec, a
// duplicate header line (if present) is ignored in favor of the first; a
// missing trailing stats line is tolerated by recomputing instead of
// failing the whole read.
func ReadJSONL(r io.Reader) (Session, error) {
	sc := newLineScanner(r)
	next := nonEmptyLines(sc)

	lineNo := 0
	var s Session
	haveHeader := false
	haveStats := false

	for {
		line, ok, err := next()
		if err != nil {
			return Session{}, fmt.Errorf("scan jsonl stream: %w", err)
		}
		if !ok {
			break
		}
		lineNo++

		var env lineEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return Session{}, &LineError{Line: lineNo, Cause: err}
		}

		if lineNo == 1 && env.Type != "header" {
			return Session{}, fmt.Errorf("%w: line 1 has type %q", ErrUnexpectedLineType, env.Type)
		}

		switch env.Type {
		case "header":
			if haveHeader {
				continue // duplicate header lines are ignored
			}
			var h wireHeader
			if err := json.Unmarshal(line, &h); err != nil {
				return Session{}, &LineError{Line: lineNo, Cause: err}
			}
			s.Version, s.SessionID, s.Agent, s.Context = h.Version, h.SessionID, h.Agent, h.Context
			s.Events = []Event{}
			haveHeader = true
		case "event":
			var ev wireEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return Session{}, &LineError{Line: lineNo, Cause: err}
			}
			s.Events = append(s.Events, ev.Event)
		case "stats":
			var st wireStats
			if err := json.Unmarshal(line, &st); err != nil {
				return Session{}, &LineError{Line: lineNo, Cause: err}
			}
			s.Stats = st.Stats
			haveStats = true
		}
	}
	if !haveHeader {
		return Session{}, ErrMissingHeader
	}
	if !haveStats {
		s.RecomputeStats()
	}
	return s, nil
}

// FromJSONLString is the string-convenience form of ReadJSONL.
func FromJSONLString(s string) (Session, error) {
	return ReadJSONL(bytes.NewReader([]byte(s)))
}

// ReadHeader reads only the first line of a HAIL JSONL stream, returning
// the header's agent and context without allocating for every event. The
// header's version and session_id are not returned.
// This is deliberately a separate, cheaper entry point from ReadJSONL:
// callers that only need to list or filter sessions (the common case) must
// not pay for parsing every event line.
func ReadHeader(r io.Reader) (Agent, Context, error) {
	sc := newLineScanner(r)
	next := nonEmptyLines(sc)

	line, ok, err := next()
	if err != nil {
		return Agent{}, Context{}, fmt.Errorf("scan jsonl stream: %w", err)
	}
	if !ok {
		return Agent{}, Context{}, ErrMissingHeader
	}
	var h wireHeader
	if err := json.Unmarshal(line, &h); err != nil {
		return Agent{}, Context{}, &LineError{Line: 1, Cause: err}
	}
	if h.Type != "header" {
		return Agent{}, Context{}, fmt.Errorf("%w: line 1 has type %q", ErrUnexpectedLineType, h.Type)
	}
	return h.Agent, h.Context, nil
}

// ReadHeaderAndStats reads the header line and, by scanning (without fully
// decoding) to the last non-empty line of the stream, the trailing stats
// line if present. This pays for a full scan but not a full decode — the
// cost asymmetry versus ReadHeader (first line only) and ReadJSONL (full
// decode) is intentional and must not be collapsed into one function.
func ReadHeaderAndStats(r io.Reader) (Agent, Context, *Stats, error) {
	sc := newLineScanner(r)
	next := nonEmptyLines(sc)

	first, ok, err := next()
	if err != nil {
		return Agent{}, Context{}, nil, fmt.Errorf("scan jsonl stream: %w", err)
	}
	if !ok {
		return Agent{}, Context{}, nil, ErrMissingHeader
	}
	var h wireHeader
	if err := json.Unmarshal(first, &h); err != nil {
		return Agent{}, Context{}, nil, &LineError{Line: 1, Cause: err}
	}
	if h.Type != "header" {
		return Agent{}, Context{}, nil, fmt.Errorf("%w: line 1 has type %q", ErrUnexpectedLineType, h.Type)
	}

	var last []byte
	for {
		line, ok, err := next()
		if err != nil {
			return Agent{}, Context{}, nil, fmt.Errorf("scan jsonl stream: %w", err)
		}
		if !ok {
			break
		}
		last = line
	}
	if last == nil {
		return h.Agent, h.Context, nil, nil
	}
	var st wireStats
	if err := json.Unmarshal(last, &st); err != nil || st.Type != "stats" {
		return h.Agent, h.Context, nil, nil
	}
	return h.Agent, h.Context, &st.Stats, nil
}
