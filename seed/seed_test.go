package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/laundry-ledger/identity"
	"github.com/warp/laundry-ledger/ledger"
	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/linen/store"
	"github.com/warp/laundry-ledger/seed"
	"github.com/warp/laundry-ledger/store/sqlite"
)

var seededAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func demo(t *testing.T) seed.Defaults {
	t.Helper()
	d, err := seed.Demo(bcrypt.MinCost, seededAt)
	require.NoError(t, err)
	return d
}

func TestDemo(t *testing.T) {
	d := demo(t)

	require.Len(t, d.Units, 3)
	assert.Equal(t, "Hospital Unit A", d.Units[0].Name)
	assert.Equal(t, "Hospital Unit C", d.Units[2].Name)
	assert.Len(t, d.ClothingTypes, 6)
	require.Len(t, d.Users, 4)

	admin := d.Users[0]
	assert.Equal(t, "admin@hospital.com", admin.Email)
	assert.Equal(t, linen.RoleAdmin, admin.Role)
	assert.True(t, identity.CheckCredential(admin.Credential, "admin123"))
	assert.Equal(t, d.Units[0].ID, admin.UnitID)

	assert.Equal(t, linen.SectorDirty, d.Users[2].Sector)
	assert.Equal(t, linen.RoleSupervisor, d.Users[3].Role)

	// ids are stable across runs
	again := demo(t)
	assert.Equal(t, d.Units[1].ID, again.Units[1].ID)
	assert.Equal(t, d.Users[3].ID, again.Users[3].ID)
}

func TestBootstrap_SeedsEmptyStore(t *testing.T) {
	// GIVEN: an empty store
	// WHEN: bootstrapping
	// THEN: every reference collection receives its defaults, the ledger stays empty
	s := store.NewMemory()
	entities := linen.NewEntities(s)
	ctx := context.Background()

	report, err := seed.Bootstrap(ctx, entities, demo(t), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Seeded[linen.CollectionUnits])
	assert.Equal(t, 6, report.Seeded[linen.CollectionClothingTypes])
	assert.Equal(t, 4, report.Seeded[linen.CollectionUsers])
	assert.Empty(t, report.Quarantined)

	n, err := entities.Count(ctx, linen.CollectionROLs)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBootstrap_NeverOverwrites(t *testing.T) {
	// GIVEN: a store whose units were edited after the first start
	// WHEN: bootstrapping again
	// THEN: nothing is reseeded and the edits survive
	s := store.NewMemory()
	entities := linen.NewEntities(s)
	ctx := context.Background()
	d := demo(t)

	_, err := seed.Bootstrap(ctx, entities, d, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, entities.DeleteUnit(ctx, d.Units[2].ID))
	renamed := "ICU"
	_, err = entities.UpdateUnit(ctx, d.Units[0].ID, linen.UnitPatch{Name: &renamed})
	require.NoError(t, err)

	report, err := seed.Bootstrap(ctx, entities, d, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, report.Seeded[linen.CollectionUnits])

	units, err := entities.Units(ctx)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "ICU", units[0].Name)
}

func TestBootstrap_QuarantinesCorruptCollection(t *testing.T) {
	// GIVEN: a users collection with an undecodable record
	// WHEN: bootstrapping
	// THEN: users are quarantined and reseeded; units are untouched
	s := store.NewMemory()
	entities := linen.NewEntities(s)
	ctx := context.Background()
	d := demo(t)

	_, err := seed.Bootstrap(ctx, entities, d, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, linen.CollectionUsers, linen.Record{ID: "broken", Body: []byte(`{"name": 42`)}))
	require.NoError(t, entities.DeleteUnit(ctx, d.Units[2].ID))

	err = entities.Verify(ctx, linen.CollectionUsers)
	require.ErrorIs(t, err, linen.ErrCorruptState)

	report, err := seed.Bootstrap(ctx, entities, d, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Quarantined[linen.CollectionUsers])
	assert.Equal(t, 4, report.Seeded[linen.CollectionUsers])
	assert.Zero(t, report.Seeded[linen.CollectionUnits])
	assert.Len(t, s.Quarantined(linen.CollectionUsers), 5)

	users, err := entities.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)

	units, err := entities.Units(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestBootstrap_SQLiteCorruptLedger(t *testing.T) {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	entities := linen.NewEntities(s)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, linen.CollectionROLs, linen.Record{ID: "x", Body: []byte("not json")}))

	report, err := seed.Bootstrap(ctx, entities, demo(t), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Quarantined[linen.CollectionROLs])

	q, err := s.QuarantinedCount(ctx, linen.CollectionROLs)
	require.NoError(t, err)
	assert.Equal(t, 1, q)

	rols, err := entities.ROLs(ctx)
	require.NoError(t, err)
	assert.Empty(t, rols)
}

func TestBootstrap_CorruptLedgerKeepsNumbering(t *testing.T) {
	backends := map[string]func(t *testing.T) linen.TxStore{
		"memory": func(t *testing.T) linen.TxStore { return store.NewMemory() },
		"sqlite": func(t *testing.T) linen.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			// GIVEN: three ROLs followed by one undecodable ledger row
			s := open(t)
			entities := linen.NewEntities(s)
			ctx := context.Background()
			d := demo(t)
			_, err := seed.Bootstrap(ctx, entities, d, zerolog.Nop())
			require.NoError(t, err)

			svc := ledger.NewService(entities, func() time.Time { return seededAt }, zerolog.Nop())
			author := linen.PrincipalOf(d.Users[1])
			req := ledger.CreateRequest{Items: []ledger.ItemInput{
				{ClothingTypeID: d.ClothingTypes[0].ID, Quantity: 1, Weight: decimal.RequireFromString("0.5")},
			}}
			for i := 0; i < 3; i++ {
				_, err := svc.CreateROL(ctx, author, req)
				require.NoError(t, err)
			}
			require.NoError(t, s.Insert(ctx, linen.CollectionROLs, linen.Record{ID: "broken", Body: []byte("{")}))

			// WHEN: bootstrapping quarantines the ledger and a ROL is created
			report, err := seed.Bootstrap(ctx, entities, d, zerolog.Nop())
			require.NoError(t, err)
			require.Equal(t, 4, report.Quarantined[linen.CollectionROLs])

			rol, err := svc.CreateROL(ctx, author, req)
			require.NoError(t, err)

			// THEN: numbering continues after the quarantined records
			assert.Equal(t, "000004", rol.Number)

			next, err := svc.CreateROL(ctx, author, req)
			require.NoError(t, err)
			assert.Equal(t, "000005", next.Number)
		})
	}
}
