package profitability

import (
	"strings"
	"time"
)

const clockLayout = "15:04"

// Span is a clock-in/clock-out pair expressed as HH:MM strings.
type Span struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Hours returns the span length in hours.
func (s Span) Hours() float64 {
	return Hours(s.Start, s.End)
}

// Hours returns the duration between two HH:MM clock times. Missing or malformed
// values yield 0. An end earlier than the start is a shift crossing midnight.
func Hours(start, end string) float64 {
	from, ok := parseClock(start)
	if !ok {
		return 0
	}
	to, ok := parseClock(end)
	if !ok {
		return 0
	}
	diff := to - from
	if diff < 0 {
		diff += 24 * time.Hour
	}
	if diff <= 0 {
		return 0
	}
	return diff.Hours()
}

// Effective merges actual over planned field by field.
func Effective(planned, actual Span) Span {
	out := planned
	if strings.TrimSpace(actual.Start) != "" {
		out.Start = actual.Start
	}
	if strings.TrimSpace(actual.End) != "" {
		out.End = actual.End
	}
	return out
}

func parseClock(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	// Postgres TIME columns come back as HH:MM:SS.
	if len(value) == len("15:04:05") {
		value = value[:5]
	}
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}
