package diffsync

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

type tokenPayload struct {
	T string `json:"t"`
}

// EncodeToken wraps a timestamp into an opaque sync token
func EncodeToken(asOf time.Time) string {
	payload, _ := json.Marshal(tokenPayload{T: asOf.UTC().Format(time.RFC3339)})
	return base64.StdEncoding.EncodeToString(payload)
}

// DecodeToken unwraps a sync token. Malformed tokens report ok=false
// rather than an error so callers can fall through to other formats.
func DecodeToken(token string) (time.Time, bool) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, false
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return time.Time{}, false
	}
	t, ok := parseTimestamp(payload.T)
	if !ok {
		return time.Time{}, false
	}
	return t, true
}

// ParseSince accepts either an ISO-8601 timestamp or a sync token
func ParseSince(value string) (time.Time, bool) {
	if t, ok := parseTimestamp(value); ok {
		return t, true
	}
	return DecodeToken(value)
}

func parseTimestamp(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	// Zone-less timestamps are treated as UTC
	if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
