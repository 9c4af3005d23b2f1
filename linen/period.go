package linen

import "time"

// =============================================================================
// PERIOD - Inclusive time range
// =============================================================================

// Period is the inclusive range [Start, End].
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within the period [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + "]"
}

// =============================================================================
// CALENDAR HELPERS - Evaluated in a caller supplied location
// =============================================================================

// StartOfDay returns the first instant of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayOf returns the period covering t's calendar day in loc.
func DayOf(t time.Time, loc *time.Location) Period {
	start := StartOfDay(t, loc)
	return Period{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}

// MonthOf returns the period covering a calendar month in loc.
func MonthOf(year int, month time.Month, loc *time.Location) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// Trailing returns [now - days*24h, now].
func Trailing(now time.Time, days int) Period {
	return Period{Start: now.Add(-time.Duration(days) * 24 * time.Hour), End: now}
}
