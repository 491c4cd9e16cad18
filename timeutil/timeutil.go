// Package timeutil parses and formats the whole-second Unix timestamps used
// throughout agent-watch. All timestamps are UTC seconds; sub-second
// precision is explicitly out of scope (spec Non-goals: "Strict wall-clock
// accuracy: timestamps are whole seconds").
package timeutil

import (
	"fmt"
	"time"

	"github.com/dmaynor/agent-watch/apperr"
)

const layout = "2006-01-02T15:04:05Z"

// ParseTimestamp parses an ISO-8601 "YYYY-MM-DDTHH:MM:SSZ" string into Unix
// seconds. Strings shorter than 20 characters, or with non-numeric fields,
// fail with apperr.InvalidTimestamp.
func ParseTimestamp(s string) (int64, error) {
	if len(s) < 20 {
		return 0, apperr.New(apperr.InvalidTimestamp, fmt.Errorf("timestamp %q too short", s))
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, apperr.New(apperr.InvalidTimestamp, err)
	}
	return t.Unix(), nil
}

// FormatTimestamp formats Unix seconds as ISO-8601. Negative seconds fail
// with apperr.InvalidTimestamp.
func FormatTimestamp(sec int64) (string, error) {
	if sec < 0 {
		return "", apperr.New(apperr.InvalidTimestamp, fmt.Errorf("negative timestamp %d", sec))
	}
	return time.Unix(sec, 0).UTC().Format(layout), nil
}
