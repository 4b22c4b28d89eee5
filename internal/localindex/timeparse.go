package localindex

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseRelativeTime accepts an RFC3339 timestamp, a "YYYY-MM-DD" date
// (midnight UTC), or a short relative expression — "3 hours ago", "2 days", "yesterday", "today" — and returns
// the absolute instant it names. This is the same vocabulary `log --since`
// and `--before` accept in the original CLI.
func ParseRelativeTime(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("localindex: empty time expression")
	}

	lower := strings.ToLower(trimmed)
	switch lower {
	case "today":
		return startOfDay(time.Now()), nil
	case "yesterday":
		return startOfDay(time.Now().AddDate(0, 0, -1)), nil
	}

	lower = strings.TrimSuffix(lower, " ago")

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t, nil
	}

	fields := strings.Fields(lower)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("localindex: unrecognized time expression %q", s)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("localindex: unrecognized time expression %q", s)
	}

	unit := strings.TrimSuffix(fields[1], "s")
	var d time.Duration
	switch unit {
	case "minute":
		d = time.Duration(n) * time.Minute
	case "hour":
		d = time.Duration(n) * time.Hour
	case "day":
		d = time.Duration(n) * 24 * time.Hour
	case "week":
		d = time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		d = time.Duration(n) * 30 * 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("localindex: unrecognized time unit %q", fields[1])
	}

	return time.Now().Add(-d), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
