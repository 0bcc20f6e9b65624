// Package timestamp converts between the ISO-8601 strings carried on the wire
// and Unix milliseconds used for latency arithmetic.
package timestamp

import (
	"strconv"
	"time"
)

// Format is the layout used for every timestamp produced by mqview.
const Format = time.RFC3339Nano

// Now returns the current UTC time formatted with Format.
func Now() string {
	return FromTime(time.Now())
}

// FromTime formats t as UTC with Format. The zero time yields "".
func FromTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Format)
}

// Millis parses an ISO-8601 timestamp into Unix milliseconds. Plain integer
// strings are accepted as Unix seconds or milliseconds.
func Millis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UnixMilli(), true
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return n, true
		}
		return n * 1000, true
	}

	return 0, false
}

// Delta returns later - earlier in milliseconds. Unparseable input yields 0.
func Delta(earlier, later string) int64 {
	a, ok := Millis(earlier)
	if !ok {
		return 0
	}
	b, ok := Millis(later)
	if !ok {
		return 0
	}
	return b - a
}

// Parse returns the timestamp as a time.Time, or the zero time when s cannot
// be parsed.
func Parse(s string) time.Time {
	ms, ok := Millis(s)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
