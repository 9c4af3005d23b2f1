package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/laundry-ledger/aggregate"
	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/linen/linentest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var engineNow = time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)

type world struct {
	fx         *linentest.Fixture
	engine     *aggregate.Engine
	admin      linen.Principal
	supervisor linen.Principal
	maria      linen.Principal
	joao       linen.Principal
}

// newWorld builds 3 units and 4 records:
//
//	000001 maria U1 today       Shirt x2 1.5
//	000002 joao  U2 today       Towel x1 0.5
//	000003 maria U1 last month  Shirt x3 2
//	000004 joao  U2 yesterday   Shirt x1 1, Towel x2 1
func newWorld(t *testing.T) world {
	fx := linentest.New(t)
	fx.Unit("U1", "Hospital Unit A")
	fx.Unit("U2", "Hospital Unit B")
	fx.Unit("U3", "Hospital Unit C")
	fx.ClothingType("C1", "Shirt")
	fx.ClothingType("C2", "Towel")

	w := world{
		fx:         fx,
		engine:     aggregate.NewEngine(fx.Entities, linentest.FixedClock(engineNow), time.UTC),
		admin:      fx.User("admin", linen.RoleAdmin, "U1", linen.SectorClean),
		supervisor: fx.User("super", linen.RoleSupervisor, "U1", linen.SectorClean),
		maria:      fx.User("maria", linen.RoleUser, "U1", linen.SectorClean),
		joao:       fx.User("joao", linen.RoleUser, "U2", linen.SectorDirty),
	}

	fx.ROL(w.maria, engineNow.Add(-2*time.Hour), linentest.Item("C1", 2, "1.5"))
	fx.ROL(w.joao, engineNow.Add(-time.Hour), linentest.Item("C2", 1, "0.5"))
	fx.ROL(w.maria, time.Date(2025, time.February, 20, 9, 0, 0, 0, time.UTC), linentest.Item("C1", 3, "2"))
	fx.ROL(w.joao, engineNow.AddDate(0, 0, -1), linentest.Item("C1", 1, "1"), linentest.Item("C2", 2, "1"))
	return w
}

func numbers(records []linen.ROL) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Number
	}
	return out
}

// =============================================================================
// VISIBILITY
// =============================================================================

func TestVisible_ByRole(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	all := []string{"000001", "000002", "000003", "000004"}
	for _, p := range []linen.Principal{w.admin, w.supervisor} {
		got, err := w.engine.Visible(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, all, numbers(got), string(p.Role))
	}

	got, err := w.engine.Visible(ctx, w.maria)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000003"}, numbers(got))

	got, err = w.engine.Visible(ctx, w.joao)
	require.NoError(t, err)
	assert.Equal(t, []string{"000002", "000004"}, numbers(got))
}

func TestVisible_CorruptLedgerIsReported(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NoError(t, w.fx.Store.Insert(ctx, linen.CollectionROLs, linen.Record{ID: "bad", Body: []byte(`{"number":`)}))

	_, err := w.engine.Visible(ctx, w.admin)
	assert.ErrorIs(t, err, linen.ErrCorruptState)
}

// =============================================================================
// QUERY
// =============================================================================

func TestQuery_Filters(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter aggregate.Filter
		want   []string
	}{
		{"everything", aggregate.Filter{}, []string{"000001", "000002", "000003", "000004"}},
		{"today", aggregate.Filter{Window: aggregate.Today()}, []string{"000001", "000002"}},
		{"last 7 days", aggregate.Filter{Window: aggregate.Last7Days()}, []string{"000001", "000002", "000004"}},
		{"february", aggregate.Filter{Window: aggregate.CalendarMonth(2025, time.February)}, []string{"000003"}},
		{"unit", aggregate.Filter{UnitID: "U2"}, []string{"000002", "000004"}},
		{"sector", aggregate.Filter{Sector: linen.SectorClean}, []string{"000001", "000003"}},
		{"search number", aggregate.Filter{Search: "0003"}, []string{"000003"}},
		{"search clothing type", aggregate.Filter{Search: "TOWEL"}, []string{"000002", "000004"}},
		{"combined", aggregate.Filter{Window: aggregate.Today(), Search: "shirt"}, []string{"000001"}},
		{"no match", aggregate.Filter{Search: "apron"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := w.engine.Query(ctx, w.admin, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, numbers(got))
		})
	}
}

func TestQuery_RespectsVisibility(t *testing.T) {
	w := newWorld(t)

	got, err := w.engine.Query(context.Background(), w.maria, aggregate.Filter{UnitID: "U2"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// GROUPED VIEWS
// =============================================================================

func TestByUnit_Today(t *testing.T) {
	w := newWorld(t)

	groups, err := w.engine.ByUnit(context.Background(), w.admin, aggregate.Today())
	require.NoError(t, err)

	require.Len(t, groups, 3)
	assert.Equal(t, []string{"000001"}, numbers(groups[0].Records))
	assert.Equal(t, []string{"000002"}, numbers(groups[1].Records))
	assert.Empty(t, groups[2].Records)
	assert.Equal(t, 0, groups[2].Totals.Quantity)
}

func TestByUnit_DeletedUnitKeepsTotals(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NoError(t, w.fx.Entities.DeleteUnit(ctx, "U2"))

	groups, err := w.engine.ByUnit(ctx, w.admin, aggregate.All())
	require.NoError(t, err)

	require.Len(t, groups, 3) // U1, U3, orphan
	orphan := groups[2]
	assert.True(t, orphan.Orphaned)
	assert.Equal(t, []string{"000002", "000004"}, numbers(orphan.Records))
	assert.Equal(t, 4, orphan.Totals.Quantity)
}

func TestByDayAndMonth(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	days, err := w.engine.ByDay(ctx, w.joao, aggregate.Last7Days())
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, []string{"000004"}, numbers(days[0].Records))
	assert.Equal(t, []string{"000002"}, numbers(days[1].Records))

	months, err := w.engine.ByMonth(ctx, w.maria, aggregate.All())
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, time.February, months[0].Month)
	assert.Equal(t, time.March, months[1].Month)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard_Admin(t *testing.T) {
	w := newWorld(t)

	d, err := w.engine.Dashboard(context.Background(), w.admin, aggregate.Window{})
	require.NoError(t, err)

	assert.Equal(t, 2, d.Today.Records)
	assert.Equal(t, 3, d.Today.Totals.Quantity)
	assertWeight(t, "2", d.Today.Totals.Weight)
	assert.Equal(t, 2, d.Today.ActiveUnits)
	assert.Len(t, d.TodayByUnit, 3)

	assert.Equal(t, "March 2025", d.MonthLabel)
	assert.Equal(t, 3, d.Month.Records)
	assertWeight(t, "4", d.Month.Totals.Weight)
	assert.Equal(t, 4, d.VisibleROLs)

	require.NotNil(t, d.Reference)
	assert.Equal(t, 3, d.Reference.Units)
	assert.Equal(t, 2, d.Reference.ClothingTypes)
	assert.Equal(t, 4, d.Reference.Users)
}

func TestDashboard_UserSeesOwnAndNoReferenceCounts(t *testing.T) {
	w := newWorld(t)

	d, err := w.engine.Dashboard(context.Background(), w.maria, aggregate.CalendarMonth(2025, time.February))
	require.NoError(t, err)

	assert.Equal(t, 1, d.Today.Records)
	assert.Equal(t, "February 2025", d.MonthLabel)
	assert.Equal(t, 1, d.Month.Records)
	assert.Equal(t, 3, d.Month.Totals.Quantity)
	assert.Equal(t, 2, d.VisibleROLs)
	assert.Nil(t, d.Reference)
}
