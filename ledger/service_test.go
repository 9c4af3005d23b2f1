package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/laundry-ledger/ledger"
	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/linen/linentest"
	"github.com/warp/laundry-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

type env struct {
	fx     *linentest.Fixture
	svc    *ledger.Service
	author linen.Principal
}

func newEnv(t *testing.T) env {
	fx := linentest.New(t)
	fx.Unit("U1", "Hospital Unit A")
	fx.ClothingType("C1", "Shirt")
	fx.ClothingType("C2", "Bed Sheet")
	author := fx.User("maria", linen.RoleUser, "U1", linen.SectorClean)
	return env{
		fx:     fx,
		svc:    ledger.NewService(fx.Entities, linentest.FixedClock(now), zerolog.Nop()),
		author: author,
	}
}

func item(ct string, qty int, weight string) ledger.ItemInput {
	return ledger.ItemInput{ClothingTypeID: ct, Quantity: qty, Weight: decimal.RequireFromString(weight)}
}

func ledgerLen(t *testing.T, e *linen.Entities) int {
	n, err := e.Count(context.Background(), linen.CollectionROLs)
	require.NoError(t, err)
	return n
}

// =============================================================================
// CREATION
// =============================================================================

func TestCreateROL_FirstRecord(t *testing.T) {
	// GIVEN: an empty ledger
	// WHEN: creating a ROL with two items
	// THEN: number is 000001 and totals are quantity 3, weight 2.0
	e := newEnv(t)

	rol, err := e.svc.CreateROL(context.Background(), e.author, ledger.CreateRequest{
		Items: []ledger.ItemInput{item("C1", 2, "1.5"), item("C2", 1, "0.5")},
	})
	require.NoError(t, err)

	assert.Equal(t, "000001", rol.Number)
	totals := rol.Totals()
	assert.Equal(t, 3, totals.Quantity)
	assert.True(t, totals.Weight.Equal(decimal.RequireFromString("2.0")), "weight = %s", totals.Weight)
}

func TestCreateROL_CopiesAuthorContext(t *testing.T) {
	e := newEnv(t)

	rol, err := e.svc.CreateROL(context.Background(), e.author, ledger.CreateRequest{
		Items:           []ledger.ItemInput{item("C1", 1, "0.3")},
		ClientSignature: "data:image/png;base64,AAAA",
	})
	require.NoError(t, err)

	assert.Equal(t, "U1", rol.UnitID)
	assert.Equal(t, linen.SectorClean, rol.Sector)
	assert.Equal(t, linen.KindDelivery, rol.Kind())
	assert.Equal(t, "maria", rol.AuthorUserID)
	assert.Equal(t, now, rol.Date)
	assert.Equal(t, now, rol.WeighingTime)
	assert.Equal(t, now, rol.CreatedAt)
	assert.Equal(t, "data:image/png;base64,AAAA", rol.ClientSignature)
	assert.Empty(t, rol.LaundrySignature)
	assert.NotEmpty(t, rol.ID)
	require.Len(t, rol.Items, 1)
	assert.NotEmpty(t, rol.Items[0].ID)
	assert.NotEqual(t, rol.ID, rol.Items[0].ID)

	stored, err := e.fx.Entities.ROLByNumber(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, rol.ID, stored.ID)
}

func TestCreateROL_DirtySectorIsCollection(t *testing.T) {
	e := newEnv(t)
	joao := e.fx.User("joao", linen.RoleUser, "U1", linen.SectorDirty)

	rol, err := e.svc.CreateROL(context.Background(), joao, ledger.CreateRequest{
		Items: []ledger.ItemInput{item("C1", 4, "2")},
	})
	require.NoError(t, err)
	assert.Equal(t, linen.KindCollection, rol.Kind())
}

func TestCreateROL_SequentialNumbers(t *testing.T) {
	// GIVEN: an empty ledger
	// WHEN: creating two ROLs one after the other
	// THEN: numbers are 000001 then 000002
	e := newEnv(t)
	ctx := context.Background()
	req := ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1")}}

	first, err := e.svc.CreateROL(ctx, e.author, req)
	require.NoError(t, err)
	second, err := e.svc.CreateROL(ctx, e.author, req)
	require.NoError(t, err)

	assert.Equal(t, "000001", first.Number)
	assert.Equal(t, "000002", second.Number)
}

// =============================================================================
// VALIDATION - no write on failure
// =============================================================================

func TestCreateROL_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		req   ledger.CreateRequest
		field string
	}{
		{"no items", ledger.CreateRequest{}, "items"},
		{"empty items", ledger.CreateRequest{Items: []ledger.ItemInput{}}, "items"},
		{"zero quantity", ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1"), item("C2", 0, "1")}}, "items[1].quantity"},
		{"negative weight", ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "-0.5")}}, "items[0].weight"},
		{"missing clothing type", ledger.CreateRequest{Items: []ledger.ItemInput{item("", 1, "1")}}, "items[0].clothingTypeId"},
		{"unknown clothing type", ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1"), item("C9", 1, "1")}}, "items[1].clothingTypeId"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)

			_, err := e.svc.CreateROL(context.Background(), e.author, tc.req)

			var vErr *linen.ValidationError
			require.True(t, errors.As(err, &vErr), "want ValidationError, got %v", err)
			assert.Equal(t, tc.field, vErr.Field)
			assert.True(t, linen.IsClientError(err))
			assert.Equal(t, 0, ledgerLen(t, e.fx.Entities), "ledger must be unchanged")
		})
	}
}

func TestCreateROL_UnknownClothingTypeLeavesLedgerUnchanged(t *testing.T) {
	// GIVEN: a ledger with one record
	// WHEN: creating a ROL that references a nonexistent clothing type
	// THEN: ValidationError and the ledger still has one record
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.CreateROL(ctx, e.author, ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1")}})
	require.NoError(t, err)

	_, err = e.svc.CreateROL(ctx, e.author, ledger.CreateRequest{Items: []ledger.ItemInput{item("ghost", 1, "1")}})
	assert.ErrorIs(t, err, linen.ErrValidation)
	assert.Equal(t, 1, ledgerLen(t, e.fx.Entities))

	next, err := e.svc.CreateROL(ctx, e.author, ledger.CreateRequest{Items: []ledger.ItemInput{item("C2", 1, "1")}})
	require.NoError(t, err)
	assert.Equal(t, "000002", next.Number, "failed attempt must not consume a number")
}

func TestCreateROL_UnknownAuthor(t *testing.T) {
	e := newEnv(t)
	ghost := linen.Principal{UserID: "ghost", Role: linen.RoleUser, UnitID: "U1", Sector: linen.SectorClean}

	_, err := e.svc.CreateROL(context.Background(), ghost, ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1")}})

	var nf *linen.NotFoundError
	require.True(t, errors.As(err, &nf), "want NotFoundError, got %v", err)
	assert.Equal(t, linen.CollectionUsers, nf.Collection)
	assert.Equal(t, 0, ledgerLen(t, e.fx.Entities))
}

func TestCreateROL_UnknownUnit(t *testing.T) {
	e := newEnv(t)
	lost := e.fx.User("lost", linen.RoleUser, "U404", linen.SectorClean)

	_, err := e.svc.CreateROL(context.Background(), lost, ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1")}})

	var nf *linen.NotFoundError
	require.True(t, errors.As(err, &nf), "want NotFoundError, got %v", err)
	assert.Equal(t, linen.CollectionUnits, nf.Collection)
	assert.Equal(t, "U404", nf.ID)
}

func TestCreateROL_UnknownRoleForbidden(t *testing.T) {
	e := newEnv(t)
	p := e.author
	p.Role = "auditor"

	_, err := e.svc.CreateROL(context.Background(), p, ledger.CreateRequest{Items: []ledger.ItemInput{item("C1", 1, "1")}})
	assert.ErrorIs(t, err, linen.ErrForbidden)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func assertGapless(t *testing.T, numbers []string, n int) {
	t.Helper()
	sort.Strings(numbers)
	want := make([]string, n)
	for i := range want {
		want[i] = linen.FormatNumber(i + 1)
	}
	assert.Equal(t, want, numbers)
}

func createConcurrently(t *testing.T, svc *ledger.Service, p linen.Principal, n int) []string {
	t.Helper()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rol, err := svc.CreateROL(context.Background(), p, ledger.CreateRequest{
				Items: []ledger.ItemInput{item("C1", 1, "0.25")},
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, rol.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return numbers
}

func TestCreateROL_ConcurrentMemory(t *testing.T) {
	// GIVEN: 50 concurrent creations on the memory store
	// THEN: numbers are exactly 000001..000050
	e := newEnv(t)
	assertGapless(t, createConcurrently(t, e.svc, e.author, 50), 50)
}

func TestCreateROL_ConcurrentSQLite(t *testing.T) {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	entities := linen.NewEntities(s)
	require.NoError(t, entities.InsertUnit(ctx, linen.Unit{ID: "U1", Name: "Unit"}))
	require.NoError(t, entities.InsertClothingType(ctx, linen.ClothingType{ID: "C1", Name: "Shirt"}))
	u := linen.User{ID: "maria", Role: linen.RoleUser, UnitID: "U1", Sector: linen.SectorClean}
	require.NoError(t, entities.InsertUser(ctx, u))

	svc := ledger.NewService(entities, nil, zerolog.Nop())
	assertGapless(t, createConcurrently(t, svc, linen.PrincipalOf(u), 25), 25)

	rols, err := entities.ROLs(ctx)
	require.NoError(t, err)
	for i, r := range rols {
		assert.Equal(t, linen.FormatNumber(i+1), r.Number, "ledger order follows numbering")
	}
}

func TestCreateROL_ConcurrentSQLiteHandlesOnOneFile(t *testing.T) {
	// GIVEN: four store handles on the same database file, as with several
	// rolctl processes running at once
	path := filepath.Join(t.TempDir(), "rol.db")
	ctx := context.Background()
	u := linen.User{ID: "maria", Role: linen.RoleUser, UnitID: "U1", Sector: linen.SectorClean}

	const handles, perHandle = 4, 10
	services := make([]*ledger.Service, handles)
	for i := range services {
		s, err := sqlite.New(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		entities := linen.NewEntities(s)
		if i == 0 {
			require.NoError(t, entities.InsertUnit(ctx, linen.Unit{ID: "U1", Name: "Unit"}))
			require.NoError(t, entities.InsertClothingType(ctx, linen.ClothingType{ID: "C1", Name: "Shirt"}))
			require.NoError(t, entities.InsertUser(ctx, u))
		}
		services[i] = ledger.NewService(entities, nil, zerolog.Nop())
	}

	// WHEN: every handle creates records concurrently
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
	)
	for _, svc := range services {
		wg.Add(1)
		go func(svc *ledger.Service) {
			defer wg.Done()
			got := createConcurrently(t, svc, linen.PrincipalOf(u), perHandle)
			mu.Lock()
			numbers = append(numbers, got...)
			mu.Unlock()
		}(svc)
	}
	wg.Wait()

	// THEN: every call succeeds and the numbers are 1..40 exactly once
	assertGapless(t, numbers, handles*perHandle)
}

