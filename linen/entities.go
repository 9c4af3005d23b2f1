/*
entities.go - Typed access to the four collections

PURPOSE:
  Store deals in JSON documents. Repo turns them into Units, ClothingTypes,
  Users and ROLs and back, and reports undecodable documents as
  CorruptStateError. Entities adds the transactional entry point and the
  seed-if-empty rule used at startup.

EXAMPLE:
  entities := linen.NewEntities(store)
  err := entities.WithTx(ctx, func(tx linen.Repo) error {
      n, err := tx.Count(ctx, linen.CollectionROLs)
      ...
      return tx.AppendROL(ctx, rol)
  })
*/
package linen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Keyed is anything stored under an id.
type Keyed interface {
	Key() string
}

func (u Unit) Key() string         { return u.ID }
func (c ClothingType) Key() string { return c.ID }
func (u User) Key() string         { return u.ID }
func (r ROL) Key() string          { return r.ID }

// Encode turns a value into a stored record.
func Encode(c Collection, v Keyed) (Record, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s %q: %w", c, v.Key(), err)
	}
	return Record{ID: v.Key(), Body: body}, nil
}

func decode[T any](c Collection, rec Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Body, &v); err != nil {
		return v, &CorruptStateError{Collection: c, ID: rec.ID, Err: err}
	}
	return v, nil
}

func listOf[T any](ctx context.Context, s Store, c Collection) ([]T, error) {
	recs, err := s.List(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := decode[T](c, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func getOf[T any](ctx context.Context, s Store, c Collection, id string) (T, error) {
	rec, err := s.Get(ctx, c, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](c, rec)
}

func put(ctx context.Context, s Store, c Collection, v Keyed, insert bool) error {
	rec, err := Encode(c, v)
	if err != nil {
		return err
	}
	if insert {
		return s.Insert(ctx, c, rec)
	}
	return s.Update(ctx, c, rec)
}

// =============================================================================
// REPO - Typed view over any Store
// =============================================================================

// Repo works over a plain Store or the Store handed to a WithTx callback.
type Repo struct {
	s Store
}

func RepoOf(s Store) Repo { return Repo{s: s} }

func (r Repo) Count(ctx context.Context, c Collection) (int, error) {
	return r.s.Count(ctx, c)
}

// NextSequence issues the next number of c and persists it. The result is
// above both the stored sequence and the live record count, so records
// appended without a sequence are never numbered over. Call it inside
// WithTx, next to the append that uses the number.
func (r Repo) NextSequence(ctx context.Context, c Collection) (int, error) {
	last, err := r.s.Sequence(ctx, c)
	if err != nil {
		return 0, err
	}
	n, err := r.s.Count(ctx, c)
	if err != nil {
		return 0, err
	}
	if n > last {
		last = n
	}
	next := last + 1
	if err := r.s.SetSequence(ctx, c, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Units

func (r Repo) Units(ctx context.Context) ([]Unit, error) {
	return listOf[Unit](ctx, r.s, CollectionUnits)
}

func (r Repo) Unit(ctx context.Context, id string) (Unit, error) {
	return getOf[Unit](ctx, r.s, CollectionUnits, id)
}

func (r Repo) InsertUnit(ctx context.Context, u Unit) error {
	return put(ctx, r.s, CollectionUnits, u, true)
}

type UnitPatch struct {
	Name *string
}

func (r Repo) UpdateUnit(ctx context.Context, id string, patch UnitPatch) (Unit, error) {
	u, err := r.Unit(ctx, id)
	if err != nil {
		return Unit{}, err
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	return u, put(ctx, r.s, CollectionUnits, u, false)
}

func (r Repo) DeleteUnit(ctx context.Context, id string) error {
	return r.s.Delete(ctx, CollectionUnits, id)
}

// Clothing types

func (r Repo) ClothingTypes(ctx context.Context) ([]ClothingType, error) {
	return listOf[ClothingType](ctx, r.s, CollectionClothingTypes)
}

func (r Repo) ClothingType(ctx context.Context, id string) (ClothingType, error) {
	return getOf[ClothingType](ctx, r.s, CollectionClothingTypes, id)
}

func (r Repo) InsertClothingType(ctx context.Context, ct ClothingType) error {
	return put(ctx, r.s, CollectionClothingTypes, ct, true)
}

type ClothingTypePatch struct {
	Name *string
}

func (r Repo) UpdateClothingType(ctx context.Context, id string, patch ClothingTypePatch) (ClothingType, error) {
	ct, err := r.ClothingType(ctx, id)
	if err != nil {
		return ClothingType{}, err
	}
	if patch.Name != nil {
		ct.Name = *patch.Name
	}
	return ct, put(ctx, r.s, CollectionClothingTypes, ct, false)
}

func (r Repo) DeleteClothingType(ctx context.Context, id string) error {
	return r.s.Delete(ctx, CollectionClothingTypes, id)
}

// Users

func (r Repo) Users(ctx context.Context) ([]User, error) {
	return listOf[User](ctx, r.s, CollectionUsers)
}

func (r Repo) User(ctx context.Context, id string) (User, error) {
	return getOf[User](ctx, r.s, CollectionUsers, id)
}

// UserByEmail looks a user up by e-mail, ignoring case.
func (r Repo) UserByEmail(ctx context.Context, email string) (User, error) {
	users, err := r.Users(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, &NotFoundError{Collection: CollectionUsers, ID: email}
}

func (r Repo) InsertUser(ctx context.Context, u User) error {
	return put(ctx, r.s, CollectionUsers, u, true)
}

// UserPatch holds the fields to change; nil means keep.
type UserPatch struct {
	Name       *string
	Email      *string
	Credential *string
	Role       *Role
	UnitID     *string
	Sector     *Sector
}

func (r Repo) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	u, err := r.User(ctx, id)
	if err != nil {
		return User{}, err
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Credential != nil {
		u.Credential = *patch.Credential
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.UnitID != nil {
		u.UnitID = *patch.UnitID
	}
	if patch.Sector != nil {
		u.Sector = *patch.Sector
	}
	return u, put(ctx, r.s, CollectionUsers, u, false)
}

func (r Repo) DeleteUser(ctx context.Context, id string) error {
	return r.s.Delete(ctx, CollectionUsers, id)
}

// Ledger

// ROLs returns the whole ledger in creation order.
func (r Repo) ROLs(ctx context.Context) ([]ROL, error) {
	return listOf[ROL](ctx, r.s, CollectionROLs)
}

func (r Repo) ROL(ctx context.Context, id string) (ROL, error) {
	return getOf[ROL](ctx, r.s, CollectionROLs, id)
}

// ROLByNumber finds a record by its sequence number.
func (r Repo) ROLByNumber(ctx context.Context, number string) (ROL, error) {
	rols, err := r.ROLs(ctx)
	if err != nil {
		return ROL{}, err
	}
	for _, rec := range rols {
		if rec.Number == number {
			return rec, nil
		}
	}
	return ROL{}, &NotFoundError{Collection: CollectionROLs, ID: number}
}

// AppendROL adds a record to the ledger. This is the ONLY ledger write.
func (r Repo) AppendROL(ctx context.Context, rec ROL) error {
	return put(ctx, r.s, CollectionROLs, rec, true)
}

// =============================================================================
// ENTITIES - Repo plus transactions and seeding
// =============================================================================

type Entities struct {
	Repo
	store TxStore
}

func NewEntities(store TxStore) *Entities {
	return &Entities{Repo: Repo{s: store}, store: store}
}

// Store returns the underlying store handle.
func (e *Entities) Store() TxStore { return e.store }

// WithTx runs fn with a Repo bound to a single-writer transaction.
func (e *Entities) WithTx(ctx context.Context, fn func(Repo) error) error {
	return e.store.WithTx(ctx, func(s Store) error {
		return fn(Repo{s: s})
	})
}

// SeedIfEmpty inserts defaults only when the collection holds no records.
// A non-empty collection is never overwritten or cleared. Returns the
// number of records inserted.
func (e *Entities) SeedIfEmpty(ctx context.Context, c Collection, defaults []Keyed) (int, error) {
	inserted := 0
	err := e.store.WithTx(ctx, func(s Store) error {
		n, err := s.Count(ctx, c)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, v := range defaults {
			if err := put(ctx, s, c, v, true); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Verify decodes every record of a collection and returns the first
// CorruptStateError found, if any.
func (e *Entities) Verify(ctx context.Context, c Collection) error {
	var err error
	switch c {
	case CollectionUnits:
		_, err = e.Units(ctx)
	case CollectionClothingTypes:
		_, err = e.ClothingTypes(ctx)
	case CollectionUsers:
		_, err = e.Users(ctx)
	case CollectionROLs:
		_, err = e.ROLs(ctx)
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
	return err
}
