package linen_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/linen/linentest"
	"github.com/warp/laundry-ledger/linen/store"
)

// =============================================================================
// DOMAIN TYPES
// =============================================================================

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "000001", linen.FormatNumber(1))
	assert.Equal(t, "000042", linen.FormatNumber(42))
	assert.Equal(t, "123456", linen.FormatNumber(123456))
}

func TestSectorKind(t *testing.T) {
	assert.Equal(t, linen.KindDelivery, linen.SectorClean.Kind())
	assert.Equal(t, linen.KindCollection, linen.SectorDirty.Kind())
	assert.True(t, linen.SectorClean.Valid())
	assert.False(t, linen.Sector("clean").Valid())
}

func TestROLTotals(t *testing.T) {
	r := linen.ROL{Items: []linen.LineItem{
		linentest.Item("C1", 2, "1.5"),
		linentest.Item("C2", 1, "0.5"),
	}}
	totals := r.Totals()
	assert.Equal(t, 3, totals.Quantity)
	assert.True(t, decimal.RequireFromString("2.0").Equal(totals.Weight))

	sum := linen.SumTotals([]linen.ROL{r, r})
	assert.Equal(t, 6, sum.Quantity)
	assert.True(t, decimal.RequireFromString("4").Equal(sum.Weight))

	// decimal keeps tenths exact where float64 would drift
	var many []linen.ROL
	for i := 0; i < 10; i++ {
		many = append(many, linen.ROL{Items: []linen.LineItem{linentest.Item("C1", 1, "0.1")}})
	}
	assert.True(t, decimal.NewFromInt(1).Equal(linen.SumTotals(many).Weight))
}

// =============================================================================
// ROLES
// =============================================================================

func TestCapabilityTable(t *testing.T) {
	admin := linen.CapabilitiesOf(linen.RoleAdmin)
	assert.True(t, admin.SeeAllROLs && admin.CreateROL && admin.ManageReference && admin.SeeReferenceCounts)

	sup := linen.CapabilitiesOf(linen.RoleSupervisor)
	assert.True(t, sup.SeeAllROLs)
	assert.False(t, sup.ManageReference)

	user := linen.CapabilitiesOf(linen.RoleUser)
	assert.True(t, user.CreateROL)
	assert.False(t, user.SeeAllROLs)

	assert.Equal(t, linen.Capabilities{}, linen.CapabilitiesOf("auditor"))
	assert.False(t, linen.Role("auditor").Valid())
}

func TestPrincipalCanSee(t *testing.T) {
	mine := linen.ROL{AuthorUserID: "maria"}
	theirs := linen.ROL{AuthorUserID: "joao"}

	maria := linen.Principal{UserID: "maria", Role: linen.RoleUser}
	assert.True(t, maria.CanSee(mine))
	assert.False(t, maria.CanSee(theirs))

	sup := linen.Principal{UserID: "carlos", Role: linen.RoleSupervisor}
	assert.True(t, sup.CanSee(theirs))
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriodBoundaries(t *testing.T) {
	loc := time.UTC
	day := linen.DayOf(time.Date(2025, time.March, 10, 15, 0, 0, 0, loc), loc)
	assert.True(t, day.Contains(time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)))
	assert.True(t, day.Contains(time.Date(2025, time.March, 10, 23, 59, 59, 999999999, loc)))
	assert.False(t, day.Contains(time.Date(2025, time.March, 11, 0, 0, 0, 0, loc)))

	feb := linen.MonthOf(2024, time.February, loc)
	assert.Equal(t, 29, feb.End.Day())
	assert.True(t, feb.Contains(feb.Start))
	assert.True(t, feb.Contains(feb.End))

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, loc)
	week := linen.Trailing(now, 7)
	assert.Equal(t, time.Date(2025, time.March, 3, 12, 0, 0, 0, loc), week.Start)
	assert.Equal(t, now, week.End)
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestEntities_CorruptRecord(t *testing.T) {
	s := store.NewMemory()
	e := linen.NewEntities(s)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, linen.CollectionUnits, linen.Record{ID: "u1", Body: []byte(`{"name":`)}))

	_, err := e.Units(ctx)

	var corrupt *linen.CorruptStateError
	require.True(t, errors.As(err, &corrupt), "want CorruptStateError, got %v", err)
	assert.Equal(t, linen.CollectionUnits, corrupt.Collection)
	assert.Equal(t, "u1", corrupt.ID)
	assert.ErrorIs(t, err, linen.ErrCorruptState)
	assert.ErrorIs(t, e.Verify(ctx, linen.CollectionUnits), linen.ErrCorruptState)
	assert.NoError(t, e.Verify(ctx, linen.CollectionUsers))
}

func TestEntities_SeedIfEmpty(t *testing.T) {
	e := linen.NewEntities(store.NewMemory())
	ctx := context.Background()
	defaults := []linen.Keyed{linen.Unit{ID: "U1", Name: "A"}, linen.Unit{ID: "U2", Name: "B"}}

	n, err := e.SeedIfEmpty(ctx, linen.CollectionUnits, defaults)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, e.DeleteUnit(ctx, "U2"))
	n, err = e.SeedIfEmpty(ctx, linen.CollectionUnits, defaults)
	require.NoError(t, err)
	assert.Zero(t, n, "non-empty collection is left alone")

	units, err := e.Units(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestEntities_UserByEmail(t *testing.T) {
	fx := linentest.New(t)
	fx.User("maria", linen.RoleUser, "U1", linen.SectorClean)

	u, err := fx.Entities.UserByEmail(context.Background(), "Maria@Hospital.com")
	require.NoError(t, err)
	assert.Equal(t, "maria", u.ID)

	_, err = fx.Entities.UserByEmail(context.Background(), "ghost@hospital.com")
	assert.True(t, linen.IsNotFound(err))
}

func TestEntities_UpdatePatch(t *testing.T) {
	fx := linentest.New(t)
	fx.User("maria", linen.RoleUser, "U1", linen.SectorClean)
	ctx := context.Background()

	role := linen.RoleSupervisor
	u, err := fx.Entities.UpdateUser(ctx, "maria", linen.UserPatch{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, linen.RoleSupervisor, u.Role)
	assert.Equal(t, linen.SectorClean, u.Sector)

	_, err = fx.Entities.UpdateUnit(ctx, "nope", linen.UnitPatch{})
	assert.ErrorIs(t, err, linen.ErrNotFound)
}

func TestEntities_WithTxRollsBackOnError(t *testing.T) {
	fx := linentest.New(t)
	ctx := context.Background()

	err := fx.Entities.WithTx(ctx, func(tx linen.Repo) error {
		if err := tx.InsertUnit(ctx, linen.Unit{ID: "U1"}); err != nil {
			return err
		}
		_, err := tx.Unit(ctx, "U404")
		return err
	})
	assert.ErrorIs(t, err, linen.ErrNotFound)

	n, err := fx.Entities.Count(ctx, linen.CollectionUnits)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEntities_AppendROLRejectsDuplicateID(t *testing.T) {
	fx := linentest.New(t)
	ctx := context.Background()
	r := linen.ROL{ID: "r1", Number: "000001"}
	require.NoError(t, fx.Entities.AppendROL(ctx, r))

	err := fx.Entities.AppendROL(ctx, r)
	assert.ErrorIs(t, err, linen.ErrDuplicateKey)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, linen.IsClientError(&linen.ValidationError{Field: "items", Reason: "is required"}))
	assert.True(t, linen.IsClientError(linen.ErrForbidden))
	assert.True(t, linen.IsClientError(linen.ErrAppendOnly))
	assert.False(t, linen.IsClientError(&linen.NotFoundError{Collection: linen.CollectionUnits, ID: "x"}))
	assert.Equal(t, "invalid items[1].quantity: must be >= 1",
		(&linen.ValidationError{Field: "items[1].quantity", Reason: "must be >= 1"}).Error())
}
