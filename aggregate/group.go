package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/laundry-ledger/linen"
)

// =============================================================================
// PURE GROUPING - No store access, safe on any record slice
// =============================================================================

// UnitGroup is the records of one unit and their totals.
type UnitGroup struct {
	Unit    linen.Unit
	Records []linen.ROL
	Totals  linen.Totals

	// Orphaned marks the trailing group holding records whose unit was
	// deleted. Unit.Name is linen.UnknownUnitLabel.
	Orphaned bool
}

type DayGroup struct {
	Day     time.Time // first instant of the day in the engine's location
	Records []linen.ROL
	Totals  linen.Totals
}

type MonthGroup struct {
	Year    int
	Month   time.Month
	Records []linen.ROL
	Totals  linen.Totals
}

// FilterByWindow keeps the records dated inside w, preserving order.
func FilterByWindow(records []linen.ROL, w Window, now time.Time, loc *time.Location) []linen.ROL {
	p, bounded := w.Period(now, loc)
	out := make([]linen.ROL, 0, len(records))
	for _, r := range records {
		if !bounded || p.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// GroupByUnit returns one group per known unit, in unit order, including
// units with no records. Records pointing at a unit not in units go to a
// trailing orphan group, so the group totals always add up to Sum(records).
func GroupByUnit(units []linen.Unit, records []linen.ROL) []UnitGroup {
	groups := make([]UnitGroup, len(units))
	index := make(map[string]int, len(units))
	for i, u := range units {
		groups[i] = UnitGroup{Unit: u, Records: []linen.ROL{}, Totals: zero()}
		index[u.ID] = i
	}

	orphan := UnitGroup{
		Unit:     linen.Unit{Name: linen.UnknownUnitLabel},
		Records:  []linen.ROL{},
		Totals:   zero(),
		Orphaned: true,
	}
	for _, r := range records {
		g := &orphan
		if i, ok := index[r.UnitID]; ok {
			g = &groups[i]
		}
		g.Records = append(g.Records, r)
		g.Totals = g.Totals.Add(r.Totals())
	}
	if len(orphan.Records) > 0 {
		groups = append(groups, orphan)
	}
	return groups
}

// GroupByDay buckets records by calendar day in loc, oldest first. Days
// without records are omitted.
func GroupByDay(records []linen.ROL, loc *time.Location) []DayGroup {
	byDay := make(map[time.Time]*DayGroup)
	for _, r := range records {
		day := linen.StartOfDay(r.Date, loc)
		g, ok := byDay[day]
		if !ok {
			g = &DayGroup{Day: day, Totals: zero()}
			byDay[day] = g
		}
		g.Records = append(g.Records, r)
		g.Totals = g.Totals.Add(r.Totals())
	}
	out := make([]DayGroup, 0, len(byDay))
	for _, g := range byDay {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// GroupByMonth buckets records by calendar month in loc, oldest first.
func GroupByMonth(records []linen.ROL, loc *time.Location) []MonthGroup {
	type key struct {
		year  int
		month time.Month
	}
	byMonth := make(map[key]*MonthGroup)
	for _, r := range records {
		d := r.Date.In(loc)
		k := key{d.Year(), d.Month()}
		g, ok := byMonth[k]
		if !ok {
			g = &MonthGroup{Year: k.year, Month: k.month, Totals: zero()}
			byMonth[k] = g
		}
		g.Records = append(g.Records, r)
		g.Totals = g.Totals.Add(r.Totals())
	}
	out := make([]MonthGroup, 0, len(byMonth))
	for _, g := range byMonth {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// Sum totals every item of every record.
func Sum(records []linen.ROL) linen.Totals {
	return linen.SumTotals(records)
}

// activeUnits counts distinct units among records.
func activeUnits(records []linen.ROL) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.UnitID] = struct{}{}
	}
	return len(seen)
}

func zero() linen.Totals { return linen.Totals{Weight: decimal.Zero} }
