// Package hail implements the trivial identity parser for sessions already
// in native HAIL JSONL form.
package hail

import (
	"bytes"
	"strings"

	"github.com/opensession/opensession-go/internal/cil"
)

// Parser implements parsers.Parser for native HAIL JSONL files.
type Parser struct{}

func (Parser) Name() string { return "hail" }

func (Parser) CanParse(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".hail.jsonl") || strings.HasSuffix(lower, ".jsonl")
}

func (Parser) Parse(_ string, data []byte) (cil.Session, error) {
	return cil.ReadJSONL(bytes.NewReader(data))
}
