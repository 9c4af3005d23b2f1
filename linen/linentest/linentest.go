// Package linentest provides fixtures for tests that need a populated store.
package linentest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/linen/store"
)

// Epoch is the default creation time of fixture entities.
var Epoch = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

// Fixture is a memory-backed store with helpers to add reference data.
type Fixture struct {
	T        testing.TB
	Store    *store.Memory
	Entities *linen.Entities
}

func New(t testing.TB) *Fixture {
	t.Helper()
	s := store.NewMemory()
	t.Cleanup(func() { s.Close() })
	return &Fixture{T: t, Store: s, Entities: linen.NewEntities(s)}
}

func (f *Fixture) Unit(id, name string) linen.Unit {
	f.T.Helper()
	u := linen.Unit{ID: id, Name: name, CreatedAt: Epoch}
	require.NoError(f.T, f.Entities.InsertUnit(context.Background(), u))
	return u
}

func (f *Fixture) ClothingType(id, name string) linen.ClothingType {
	f.T.Helper()
	ct := linen.ClothingType{ID: id, Name: name, CreatedAt: Epoch}
	require.NoError(f.T, f.Entities.InsertClothingType(context.Background(), ct))
	return ct
}

// User inserts a user and returns its principal.
func (f *Fixture) User(id string, role linen.Role, unitID string, sector linen.Sector) linen.Principal {
	f.T.Helper()
	u := linen.User{
		ID:        id,
		Name:      id,
		Email:     id + "@hospital.com",
		Role:      role,
		UnitID:    unitID,
		Sector:    sector,
		CreatedAt: Epoch,
	}
	require.NoError(f.T, f.Entities.InsertUser(context.Background(), u))
	return linen.PrincipalOf(u)
}

// ROL appends a ledger record directly, bypassing the ledger service.
// Number is derived from the current ledger length.
func (f *Fixture) ROL(author linen.Principal, at time.Time, items ...linen.LineItem) linen.ROL {
	f.T.Helper()
	ctx := context.Background()
	n, err := f.Entities.Count(ctx, linen.CollectionROLs)
	require.NoError(f.T, err)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = linen.FormatNumber(n+1) + "-" + linen.FormatNumber(i+1)
		}
	}
	rec := linen.ROL{
		ID:           "rol-" + linen.FormatNumber(n+1),
		Number:       linen.FormatNumber(n + 1),
		Date:         at.UTC(),
		UnitID:       author.UnitID,
		Sector:       author.Sector,
		Items:        items,
		WeighingTime: at.UTC(),
		AuthorUserID: author.UserID,
		CreatedAt:    at.UTC(),
	}
	require.NoError(f.T, f.Entities.AppendROL(ctx, rec))
	return rec
}

// Item builds a line item; weight is parsed from a decimal string.
func Item(clothingTypeID string, quantity int, weight string) linen.LineItem {
	return linen.LineItem{
		ClothingTypeID: clothingTypeID,
		Quantity:       quantity,
		Weight:         decimal.RequireFromString(weight),
	}
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
