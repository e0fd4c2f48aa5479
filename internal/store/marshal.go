package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/lnharness/internal/trace"
)

// timeLayout is the text form of every stored instant. The fraction is
// fixed width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// marshalStrings converts a token or message list to canonical JSON TEXT.
func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	data, err := trace.MarshalCanonical(ss)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses a JSON array of strings.
func unmarshalStrings(data string) ([]string, error) {
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if ss == nil {
		ss = []string{}
	}
	return ss, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
