/*
Package linen provides the domain model of the laundry ROL ledger.

PURPOSE:
  A ROL documents one batch of linen collected from (dirty sector) or
  delivered to (clean sector) a hospital unit: which clothing types, how
  many pieces, how much they weighed, and who signed for them. This package
  holds the record types, the reference entities they point at, the typed
  errors, and the persistence contracts the rest of the module builds on.

KEY CONCEPTS IN THIS FILE (types.go):
  - Unit, ClothingType, User: reference entities, managed by admins
  - LineItem: one row of a ROL (clothing type, quantity, weight)
  - ROL: the append-only ledger record
  - Totals: quantity and weight sums, derived, never stored

DESIGN PRINCIPLES:
  1. Immutability: a committed ROL is never edited or removed
  2. Precision: weights use decimal.Decimal so sums are exact
  3. Copy-on-create: a ROL keeps the unit and sector its author had at
     creation time, even if the profile changes later

SEE ALSO:
  - store.go: persistence contracts
  - entities.go: typed access to the four collections
  - role.go: what each role may see and do
*/
package linen

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE ENTITIES
// =============================================================================

type Unit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type ClothingType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is an account known to the ledger. Credential holds a bcrypt hash,
// never the plain secret.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Credential string    `json:"credential"`
	Role       Role      `json:"role"`
	UnitID     string    `json:"unitId"`
	Sector     Sector    `json:"sector"`
	CreatedAt  time.Time `json:"createdAt"`
}

// =============================================================================
// SECTOR - Workflow stage of the authoring context
// =============================================================================

type Sector string

const (
	SectorClean Sector = "Clean" // delivery of washed linen
	SectorDirty Sector = "Dirty" // collection of used linen
)

func (s Sector) Valid() bool {
	return s == SectorClean || s == SectorDirty
}

// Kind is the ROL type implied by a sector.
type Kind string

const (
	KindDelivery   Kind = "delivery"
	KindCollection Kind = "collection"
)

// Kind returns the ROL kind recorded from this sector.
func (s Sector) Kind() Kind {
	if s == SectorDirty {
		return KindCollection
	}
	return KindDelivery
}

// =============================================================================
// ROL - Append-only ledger record
// =============================================================================

// LineItem is embedded in a ROL and never stored on its own.
type LineItem struct {
	ID             string          `json:"id"`
	ClothingTypeID string          `json:"clothingTypeId"`
	Quantity       int             `json:"quantity"`
	Weight         decimal.Decimal `json:"weight"`
}

// ROL is one ledger record.
//
// INVARIANTS:
//   - Number is unique, gapless and strictly increasing in creation order.
//   - Items is non-empty.
//   - UnitID and Sector are copies taken from the author at creation time.
type ROL struct {
	ID               string     `json:"id"`
	Number           string     `json:"number"`
	Date             time.Time  `json:"date"`
	UnitID           string     `json:"unitId"`
	Sector           Sector     `json:"sector"`
	Items            []LineItem `json:"items"`
	WeighingTime     time.Time  `json:"weighingTime"`
	ClientSignature  string     `json:"clientSignature,omitempty"`
	LaundrySignature string     `json:"laundrySignature,omitempty"`
	AuthorUserID     string     `json:"authorUserId"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Kind reports whether the ROL is a delivery or a collection.
func (r ROL) Kind() Kind { return r.Sector.Kind() }

// Totals sums quantity and weight over the ROL's items.
func (r ROL) Totals() Totals {
	t := Totals{Weight: decimal.Zero}
	for _, item := range r.Items {
		t.Quantity += item.Quantity
		t.Weight = t.Weight.Add(item.Weight)
	}
	return t
}

// =============================================================================
// TOTALS
// =============================================================================

type Totals struct {
	Quantity int             `json:"quantity"`
	Weight   decimal.Decimal `json:"weight"`
}

func (t Totals) Add(o Totals) Totals {
	return Totals{Quantity: t.Quantity + o.Quantity, Weight: t.Weight.Add(o.Weight)}
}

// SumTotals adds up the totals of every record.
func SumTotals(records []ROL) Totals {
	sum := Totals{Weight: decimal.Zero}
	for _, r := range records {
		sum = sum.Add(r.Totals())
	}
	return sum
}

// =============================================================================
// PLACEHOLDERS - Shown for references that no longer resolve
// =============================================================================

const (
	UnknownUnitLabel         = "(deleted unit)"
	UnknownClothingTypeLabel = "(deleted clothing type)"
)

// FormatNumber renders a ledger sequence value the way it is stored.
func FormatNumber(seq int) string {
	return fmt.Sprintf("%06d", seq)
}
