package parsers

import (
	"encoding/json"
	"sort"
	"strings"
)

// Candidate is one parser's detection result for a file.
type Candidate struct {
	ParserID   string
	Confidence int
	Reason     string
}

// DetectCandidates scores every known vendor format against a filename and
// its content, returning candidates sorted by confidence descending, then
// parser id ascending for stable tie-breaking. The exact confidence values
// are part of the detection contract, not tuning knobs: tests depend on
// them being reproducible.
func DetectCandidates(filename string, content []byte) []Candidate {
	scores := make(map[string]int)
	reasons := make(map[string]string)
	bump := func(parserID string, confidence int, reason string) {
		if confidence > scores[parserID] {
			scores[parserID] = confidence
			reasons[parserID] = reason
		}
	}

	lowerName := strings.ToLower(filename)
	text := string(content)
	firstLine := firstNonEmptyLine(text)

	switch {
	case strings.HasSuffix(lowerName, ".hail.jsonl"):
		bump("hail", 95, "filename ends .hail.jsonl")
	case strings.HasSuffix(lowerName, ".vscdb"):
		bump("cursor", 92, "filename ends .vscdb")
	case strings.HasSuffix(lowerName, "api_conversation_history.json"):
		bump("cline", 88, "filename ends api_conversation_history.json")
	}

	if firstLine != "" {
		var head map[string]json.RawMessage
		if json.Unmarshal([]byte(firstLine), &head) == nil {
			if hasKey(head, "type", "header") && hasKey(head, "version") && hasKey(head, "session_id") {
				bump("hail", 100, `first JSONL line has type:"header" + version + session_id`)
			}
			if t, ok := stringField(head, "type"); ok && (t == "user" || t == "assistant") {
				if _, ok := head["message"]; ok {
					bump("claude-code", 88, `JSONL line has type:"user"/"assistant" with message`)
				}
			}
		}
	}

	var whole map[string]json.RawMessage
	if json.Unmarshal(content, &whole) == nil {
		if hasAllKeys(whole, "version", "session_id", "agent", "context", "events") {
			bump("hail", 86, "JSON object has version/session_id/agent/context/events")
		}
		if hasAllKeys(whole, "messages") && (hasAllKeys(whole, "session_id") || hasAllKeys(whole, "sessionId")) {
			bump("gemini", 84, "JSON has messages + session_id/sessionId")
		}
		if hasAllKeys(whole, "agentMode") || (hasAllKeys(whole, "messages") && strings.Contains(text, "tool_use")) {
			bump("amp", 66, "JSON has agentMode or (messages + tool_use)")
		}
		if hasAllKeys(whole, "providerID") || hasAllKeys(whole, "modelID") {
			bump("opencode", 60, "JSON has providerID/modelID")
		}
	}

	if strings.Contains(text, `"type":"session_meta"`) || strings.Contains(text, `"type": "session_meta"`) {
		bump("codex", 90, `content contains "type":"session_meta"`)
	}

	if strings.HasSuffix(lowerName, ".jsonl") {
		bump("claude-code", 65, "generic .jsonl extension")
		bump("codex", 65, "generic .jsonl extension")
		bump("hail", 65, "generic .jsonl extension")
	}

	candidates := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, Candidate{ParserID: id, Confidence: score, Reason: reasons[id]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].ParserID < candidates[j].ParserID
	})
	return candidates
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func hasKey(m map[string]json.RawMessage, key string, wantValue ...string) bool {
	raw, ok := m[key]
	if !ok {
		return false
	}
	if len(wantValue) == 0 {
		return true
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return false
	}
	return s == wantValue[0]
}

func hasAllKeys(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func stringField(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}
