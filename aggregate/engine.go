/*
Package aggregate provides read-only, role-scoped views over the ledger.

PURPOSE:
  Dashboards and reports never read the ledger directly. They ask the
  Engine, which first narrows the ledger to what the principal may see and
  then applies time windows, filters and groupings.

VISIBILITY:
  Decided by linen.Capabilities.SeeAllROLs:
    admin, supervisor -> every record
    user              -> only records the user authored

WINDOWS (inclusive bounds):
  Today          first to last instant of the local calendar day
  Last7Days      [now - 7*24h, now]
  Last30Days     [now - 30*24h, now]
  CalendarMonth  first to last instant of the month
  All            no bounds

CONSERVATION:
  For every grouping, the group totals add up to the totals of the input
  records. GroupByUnit keeps a trailing orphan group for records whose unit
  has been deleted so nothing is dropped.

SEE ALSO:
  - group.go: the pure grouping functions the Engine delegates to
  - window.go: window definitions and labels
*/
package aggregate

import (
	"context"
	"strings"
	"time"

	"github.com/warp/laundry-ledger/linen"
)

type Engine struct {
	entities *linen.Entities
	now      func() time.Time
	loc      *time.Location
}

// NewEngine creates an engine. A nil clock means time.Now and a nil
// location means time.Local.
func NewEngine(entities *linen.Entities, clock func() time.Time, loc *time.Location) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{entities: entities, now: clock, loc: loc}
}

// Location is the zone used for calendar boundaries.
func (e *Engine) Location() *time.Location { return e.loc }

// Now reads the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// Visible returns the ledger records p may read, in ledger order.
func (e *Engine) Visible(ctx context.Context, p linen.Principal) ([]linen.ROL, error) {
	all, err := e.entities.ROLs(ctx)
	if err != nil {
		return nil, err
	}
	if p.Can().SeeAllROLs {
		return all, nil
	}
	out := make([]linen.ROL, 0, len(all))
	for _, r := range all {
		if p.CanSee(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// QUERY - Window plus list-screen filters
// =============================================================================

// Filter narrows visible records. Empty fields match everything.
type Filter struct {
	Window Window
	UnitID string
	Sector linen.Sector

	// Search matches the ROL number or the name of any item's clothing
	// type, ignoring case.
	Search string
}

func (e *Engine) Query(ctx context.Context, p linen.Principal, f Filter) ([]linen.ROL, error) {
	visible, err := e.Visible(ctx, p)
	if err != nil {
		return nil, err
	}
	records := FilterByWindow(visible, f.Window, e.now(), e.loc)

	var names map[string]string
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle != "" {
		types, err := e.entities.ClothingTypes(ctx)
		if err != nil {
			return nil, err
		}
		names = make(map[string]string, len(types))
		for _, ct := range types {
			names[ct.ID] = strings.ToLower(ct.Name)
		}
	}

	out := make([]linen.ROL, 0, len(records))
	for _, r := range records {
		if f.UnitID != "" && r.UnitID != f.UnitID {
			continue
		}
		if f.Sector != "" && r.Sector != f.Sector {
			continue
		}
		if needle != "" && !matches(r, needle, names) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func matches(r linen.ROL, needle string, names map[string]string) bool {
	if strings.Contains(strings.ToLower(r.Number), needle) {
		return true
	}
	for _, item := range r.Items {
		if strings.Contains(names[item.ClothingTypeID], needle) {
			return true
		}
	}
	return false
}

// =============================================================================
// GROUPED VIEWS
// =============================================================================

func (e *Engine) ByUnit(ctx context.Context, p linen.Principal, w Window) ([]UnitGroup, error) {
	records, err := e.Query(ctx, p, Filter{Window: w})
	if err != nil {
		return nil, err
	}
	units, err := e.entities.Units(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByUnit(units, records), nil
}

func (e *Engine) ByDay(ctx context.Context, p linen.Principal, w Window) ([]DayGroup, error) {
	records, err := e.Query(ctx, p, Filter{Window: w})
	if err != nil {
		return nil, err
	}
	return GroupByDay(records, e.loc), nil
}

func (e *Engine) ByMonth(ctx context.Context, p linen.Principal, w Window) ([]MonthGroup, error) {
	records, err := e.Query(ctx, p, Filter{Window: w})
	if err != nil {
		return nil, err
	}
	return GroupByMonth(records, e.loc), nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Summary is a record count with totals.
type Summary struct {
	Records     int
	Totals      linen.Totals
	ActiveUnits int // distinct units with at least one record
}

// ReferenceCounts is only filled for roles with SeeReferenceCounts.
type ReferenceCounts struct {
	Units         int
	ClothingTypes int
	Users         int
}

type Dashboard struct {
	Today       Summary
	TodayByUnit []UnitGroup

	Month       Summary
	MonthLabel  string
	MonthByUnit []UnitGroup

	VisibleROLs int
	Reference   *ReferenceCounts
}

// Dashboard builds the home-screen counters for p. If month is not a
// calendar month window, the month containing now is used.
func (e *Engine) Dashboard(ctx context.Context, p linen.Principal, month Window) (Dashboard, error) {
	now := e.now()
	if month.Kind != WindowCalendarMonth {
		local := now.In(e.loc)
		month = CalendarMonth(local.Year(), local.Month())
	}

	visible, err := e.Visible(ctx, p)
	if err != nil {
		return Dashboard{}, err
	}
	units, err := e.entities.Units(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	today := FilterByWindow(visible, Today(), now, e.loc)
	inMonth := FilterByWindow(visible, month, now, e.loc)

	d := Dashboard{
		Today:       summarize(today),
		TodayByUnit: GroupByUnit(units, today),
		Month:       summarize(inMonth),
		MonthLabel:  month.Label(),
		MonthByUnit: GroupByUnit(units, inMonth),
		VisibleROLs: len(visible),
	}

	if p.Can().SeeReferenceCounts {
		ref := &ReferenceCounts{Units: len(units)}
		if ref.ClothingTypes, err = e.entities.Count(ctx, linen.CollectionClothingTypes); err != nil {
			return Dashboard{}, err
		}
		if ref.Users, err = e.entities.Count(ctx, linen.CollectionUsers); err != nil {
			return Dashboard{}, err
		}
		d.Reference = ref
	}
	return d, nil
}

func summarize(records []linen.ROL) Summary {
	return Summary{
		Records:     len(records),
		Totals:      Sum(records),
		ActiveUnits: activeUnits(records),
	}
}
