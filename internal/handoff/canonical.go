package handoff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CanonicalizeSummaries renders summaries as the artifact's canonical
// JSONL body: one JSON object per line, stable key order (Go's
// encoding/json already emits struct fields in declaration order, so no
// extra sorting step is needed there), stable-sorted by source_session_id
// ascending. Equal summary sets always canonicalize to byte-identical
// output regardless of input order.
func CanonicalizeSummaries(summaries []HandoffSummary) (string, error) {
	type pair struct {
		id    string
		value string
	}
	pairs := make([]pair, 0, len(summaries))
	for _, s := range summaries {
		raw, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("canonicalize handoff summary %q: %w", s.SourceSessionID, err)
		}
		pairs = append(pairs, pair{id: s.SourceSessionID, value: string(raw)})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.value)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
