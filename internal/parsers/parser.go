// Package parsers normalizes vendor-specific AI coding-assistant transcripts
// into the canonical interaction log (internal/cil), auto-detects which
// vendor format a file is in, and exposes an ingest preview that surfaces
// ambiguity to the caller instead of guessing silently.
package parsers

import "github.com/opensession/opensession-go/internal/cil"

// Parser is a polymorphic transcript reader: one per vendor format.
type Parser interface {
	// Name is the parser's stable identifier (e.g. "claude-code").
	Name() string
	// CanParse is a fast, best-effort filename/extension check.
	CanParse(path string) bool
	// Parse reads the full file content and returns a canonical Session.
	Parse(path string, data []byte) (cil.Session, error)
}
