/*
store.go - Persistence interface for the four ledger collections

PURPOSE:
  Defines the interface between the domain logic and durable storage.
  A Store keeps named collections of JSON documents in insertion order.
  It knows nothing about units or ROLs; entities.go does the typing.

COLLECTIONS:
  units, clothingTypes, users - reference entities, fully mutable
  rols                        - the ledger, APPEND-ONLY

APPEND-ONLY CONTRACT:
  Update() and Delete() on the rols collection fail with ErrAppendOnly in
  every implementation. Nothing above the store can remove a ledger record.

SEQUENCES:
  Each collection has a persisted "last number issued" value. Quarantine
  empties a collection but keeps its sequence, so ledger numbers held by
  quarantined records are not handed out again.

ATOMIC WRITES:
  WithTx() runs a function under the store's single-writer lock. Reads and
  writes made through the Store handed to fn see each other; an error
  returned by fn discards all of them. The ledger uses this to make
  "read the count, then append" indivisible.

IMPLEMENTATIONS:
  - linen/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: durable SQLite

SEE ALSO:
  - entities.go: typed repository on top of Store
  - ledger/service.go: the only writer of the rols collection
*/
package linen

import (
	"context"
	"encoding/json"
)

// Collection names a stored collection.
type Collection string

const (
	CollectionUnits         Collection = "units"
	CollectionClothingTypes Collection = "clothingTypes"
	CollectionUsers         Collection = "users"
	CollectionROLs          Collection = "rols"
)

// Collections lists every collection in bootstrap order.
var Collections = []Collection{
	CollectionUnits,
	CollectionClothingTypes,
	CollectionUsers,
	CollectionROLs,
}

// AppendOnly reports whether records of the collection are immutable.
func (c Collection) AppendOnly() bool { return c == CollectionROLs }

// Record is one stored document.
type Record struct {
	ID   string
	Body json.RawMessage
}

// =============================================================================
// STORE - Ordered document collections
// =============================================================================

type Store interface {
	// List returns the collection in insertion order.
	List(ctx context.Context, c Collection) ([]Record, error)

	// Get returns a single record or a *NotFoundError.
	Get(ctx context.Context, c Collection, id string) (Record, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, c Collection) (int, error)

	// Insert appends a record. Returns *DuplicateKeyError if the id exists.
	Insert(ctx context.Context, c Collection, rec Record) error

	// Update replaces the body of an existing record, keeping its position.
	Update(ctx context.Context, c Collection, rec Record) error

	// Delete removes a record. Dependents are not touched.
	Delete(ctx context.Context, c Collection, id string) error

	// Quarantine moves every record of c out of the live collection and
	// returns how many were moved. Used only to recover from corrupt state.
	// The collection's sequence is left as it is.
	Quarantine(ctx context.Context, c Collection) (int, error)

	// Sequence returns the last number issued for c, 0 if none.
	Sequence(ctx context.Context, c Collection) (int, error)

	// SetSequence records the last number issued for c.
	SetSequence(ctx context.Context, c Collection, n int) error
}

// TxStore wraps Store with transaction support and a lifecycle.
type TxStore interface {
	Store

	// WithTx executes fn under the single-writer lock.
	// If fn returns error, every write made through the inner Store is
	// rolled back. If fn returns nil, they are committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

// =============================================================================
// SESSION SLOT - Owned by the identity provider
// =============================================================================

// SessionStore holds the id of the user whose session is active. It is a
// single value stored next to the collections.
type SessionStore interface {
	CurrentSession(ctx context.Context) (userID string, ok bool, err error)
	SetSession(ctx context.Context, userID string) error
	ClearSession(ctx context.Context) error
}
