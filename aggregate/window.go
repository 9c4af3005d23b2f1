package aggregate

import (
	"fmt"
	"time"

	"github.com/warp/laundry-ledger/linen"
)

// =============================================================================
// WINDOW - Time filter over the ledger
// =============================================================================

type WindowKind string

const (
	WindowToday         WindowKind = "today"
	WindowLast7Days     WindowKind = "last7Days"
	WindowLast30Days    WindowKind = "last30Days"
	WindowCalendarMonth WindowKind = "calendarMonth"
	WindowAll           WindowKind = "all"
)

// Window selects records by date. Build one with the constructors below;
// the zero value behaves like All.
type Window struct {
	Kind  WindowKind
	Year  int
	Month time.Month
}

func Today() Window      { return Window{Kind: WindowToday} }
func Last7Days() Window  { return Window{Kind: WindowLast7Days} }
func Last30Days() Window { return Window{Kind: WindowLast30Days} }
func All() Window        { return Window{Kind: WindowAll} }

func CalendarMonth(year int, month time.Month) Window {
	return Window{Kind: WindowCalendarMonth, Year: year, Month: month}
}

// ParseWindow reads the names used on the command line: today, 7d, 30d,
// all, or a month as YYYY-MM.
func ParseWindow(s string) (Window, error) {
	switch s {
	case "today":
		return Today(), nil
	case "7d", "last7Days":
		return Last7Days(), nil
	case "30d", "last30Days":
		return Last30Days(), nil
	case "", "all":
		return All(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Window{}, &linen.ValidationError{Field: "window", Reason: fmt.Sprintf("unknown window %q", s)}
	}
	return CalendarMonth(t.Year(), t.Month()), nil
}

// Period resolves the window against now. The bool is false for All,
// which has no bounds. Calendar boundaries are taken in loc.
func (w Window) Period(now time.Time, loc *time.Location) (linen.Period, bool) {
	switch w.Kind {
	case WindowToday:
		return linen.DayOf(now, loc), true
	case WindowLast7Days:
		return linen.Trailing(now, 7), true
	case WindowLast30Days:
		return linen.Trailing(now, 30), true
	case WindowCalendarMonth:
		return linen.MonthOf(w.Year, w.Month, loc), true
	default:
		return linen.Period{}, false
	}
}

// Label is the human period name printed on batch reports.
func (w Window) Label() string {
	switch w.Kind {
	case WindowToday:
		return "Today"
	case WindowLast7Days:
		return "Last 7 days"
	case WindowLast30Days:
		return "Last 30 days"
	case WindowCalendarMonth:
		return fmt.Sprintf("%s %d", w.Month, w.Year)
	default:
		return "All records"
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time, now time.Time, loc *time.Location) bool {
	p, bounded := w.Period(now, loc)
	return !bounded || p.Contains(t)
}
