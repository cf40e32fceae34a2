package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Lenient fallback layouts, tried in order after strict RFC 3339. Values
// without an offset are interpreted in the server's local zone, matching
// how a naive wall-clock string is compared against "now".
var lenientLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp forms accepted at registration:
//
//   - strict ISO 8601 / RFC 3339, including a trailing Z
//   - "YYYY-MM-DD HH:MM:SS UTC", rewritten to "YYYY-MM-DDTHH:MM:SSZ"
//   - a handful of lenient date/time layouts as a fallback
func ParseTimestamp(value string) (time.Time, error) {
	v := strings.TrimSpace(value)

	if strings.HasSuffix(strings.ToUpper(v), " UTC") {
		core := strings.TrimSpace(v[:len(v)-4])
		if !strings.Contains(core, "T") && strings.Contains(core, " ") {
			core = strings.Replace(core, " ", "T", 1)
		}
		v = core + "Z"
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}

	for _, layout := range lenientLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q: use ISO 8601 like 2025-12-25T10:00:00Z", value)
}
