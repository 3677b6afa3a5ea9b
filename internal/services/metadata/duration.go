package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ISO 8601 duration pattern (P[nD]T[nH][nM][nS])
var isoDurationRe = regexp.MustCompile(`(?i)^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISODuration converts an ISO 8601 duration string into a
// human-readable form:
//
//	PT25M   -> "25 min"
//	PT1H30M -> "1h 30 min"
//	P1DT2H  -> "1d 2h"
//
// Unparseable input passes through unchanged; empty input yields empty output.
func ParseISODuration(duration string) string {
	if duration == "" {
		return ""
	}

	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(duration))
	if m == nil {
		return duration
	}

	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	if len(parts) == 0 {
		return duration
	}
	return strings.Join(parts, " ")
}
