package profitability

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// DateRange is an inclusive calendar range; both ends are widened to whole days.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange validates the bounds and snaps them to day boundaries.
func NewDateRange(from, to time.Time) (DateRange, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{From: StartOfDay(from), To: EndOfDay(to)}, nil
}

// MonthRange covers the whole calendar month holding t.
func MonthRange(t time.Time) DateRange {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return DateRange{From: first, To: EndOfDay(first.AddDate(0, 1, -1))}
}

// ParseMonth reads a YYYY-MM key into the range of that month.
func ParseMonth(key string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(monthLayout, key, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse month %q: %w", key, err)
	}
	return MonthRange(t), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Contains reports whether t falls inside the range, both ends inclusive.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Months lists the YYYY-MM keys the range touches.
func (r DateRange) Months() []string {
	if r.To.Before(r.From) {
		return nil
	}
	var out []string
	current := time.Date(r.From.Year(), r.From.Month(), 1, 0, 0, 0, 0, r.From.Location())
	end := time.Date(r.To.Year(), r.To.Month(), 1, 0, 0, 0, 0, r.From.Location())
	for !current.After(end) {
		out = append(out, current.Format(monthLayout))
		current = current.AddDate(0, 1, 0)
	}
	return out
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}
