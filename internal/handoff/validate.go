package handoff

import "fmt"

// Finding is one observation about a HandoffSummary's quality.
type Finding struct {
	Severity string `json:"severity"` // "error" | "warning" | "info"
	Message  string `json:"message"`
}

// ValidationReport is one summary's findings, keyed by source session so
// callers can correlate a report back to the session it's about.
type ValidationReport struct {
	SourceSessionID string    `json:"source_session_id"`
	Findings        []Finding `json:"findings"`
}

// ValidateSummaries returns one report per summary, in input order.
// A session is never rejected outright here — `--validate` at the call
// site decides whether an error-severity finding should abort the build.
func ValidateSummaries(summaries []HandoffSummary) []ValidationReport {
	reports := make([]ValidationReport, 0, len(summaries))
	for _, s := range summaries {
		reports = append(reports, ValidationReport{
			SourceSessionID: s.SourceSessionID,
			Findings:        validateOne(s),
		})
	}
	return reports
}

func validateOne(s HandoffSummary) []Finding {
	var findings []Finding

	if s.Stats.EventCount == 0 {
		findings = append(findings, Finding{Severity: "error", Message: "session has no events"})
	}

	if s.ObjectiveUndefinedReason != nil {
		findings = append(findings, Finding{
			Severity: "warning",
			Message:  fmt.Sprintf("objective could not be determined: %s", *s.ObjectiveUndefinedReason),
		})
	}

	if len(s.Errors) > 0 {
		findings = append(findings, Finding{
			Severity: "info",
			Message:  fmt.Sprintf("%d error(s) recorded during session", len(s.Errors)),
		})
	}

	return findings
}

// HasErrorFindings reports whether any report contains an error-severity
// finding — the condition `--validate` checks before failing a build.
func HasErrorFindings(reports []ValidationReport) bool {
	return CountErrorFindings(reports) > 0
}

// CountErrorFindings counts error-severity findings across all reports.
func CountErrorFindings(reports []ValidationReport) int {
	n := 0
	for _, r := range reports {
		for _, f := range r.Findings {
			if f.Severity == "error" {
				n++
			}
		}
	}
	return n
}
