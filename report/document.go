/*
Package report turns ledger data into renderer-agnostic documents.

PURPOSE:
  Formatting is pure: FormatSingle and FormatBatch take records and a
  Resolver and return a Document. They never fail on a dangling reference;
  a deleted unit or clothing type prints as a placeholder label. Rendering
  to bytes is left to report/pdf and report/xlsx.

BATCH ROW MERGE RULE:
  Each ROL contributes one row per item. The first row of a ROL carries
  its number, date, unit and sector; the following rows of the same ROL
  leave those four fields blank. Renderers rely on this to draw groups.

    000001 | 10/03/2025 14:30 | Unit A | Clean | Shirt     | 2 | 1.50
           |                  |        |       | Bed Sheet | 1 | 0.50
    000002 | 10/03/2025 15:10 | Unit B | Dirty | Towel     | 4 | 2.00

SIGNATURES:
  A single ROL document always has two slots, client then laundry. A slot
  is either Signed with the stored image data URL, or carries the
  UnsignedMarker text.
*/
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/laundry-ledger/linen"
)

// DateLayout is the day/month order used on printed ROLs.
const DateLayout = "02/01/2006 15:04"

// UnsignedMarker is printed in an empty signature slot.
const UnsignedMarker = "Not signed"

type DocumentType string

const (
	TypeSingle DocumentType = "single"
	TypeBatch  DocumentType = "batch"
)

// Document is the formatter output. Exactly one of Single and Batch is set,
// matching Type.
type Document struct {
	Type   DocumentType
	Title  string
	Single *SingleBody
	Batch  *BatchBody
}

// =============================================================================
// SINGLE ROL
// =============================================================================

type Header struct {
	Number       string
	Kind         string
	Date         string
	Unit         string
	Sector       string
	WeighingTime string
}

type ItemLine struct {
	ClothingType string
	Quantity     int
	Weight       decimal.Decimal
}

type SignatureParty string

const (
	PartyClient  SignatureParty = "client"
	PartyLaundry SignatureParty = "laundry"
)

type Signature struct {
	Party  SignatureParty
	Signed bool
	Image  string // data URL when Signed
}

// Text is what a text-only renderer prints in the slot.
func (s Signature) Text() string {
	if s.Signed {
		return "Signed"
	}
	return UnsignedMarker
}

type SingleBody struct {
	Header     Header
	Items      []ItemLine
	Totals     linen.Totals
	Signatures [2]Signature
}

// =============================================================================
// BATCH
// =============================================================================

type Summary struct {
	PeriodLabel string
	Records     int
	Totals      linen.Totals
}

// BatchRow is one item line. Number, Date, Unit and Sector are only set on
// the first row of each ROL; First marks that row.
type BatchRow struct {
	First        bool
	Number       string
	Date         string
	Unit         string
	Sector       string
	ClothingType string
	Quantity     int
	Weight       decimal.Decimal
}

type BatchBody struct {
	Summary Summary
	Rows    []BatchRow
}

// =============================================================================
// RESOLVER - Foreign keys to display names
// =============================================================================

// Resolver maps unit and clothing type ids to names and formats instants in
// a fixed location.
type Resolver struct {
	units map[string]string
	types map[string]string
	loc   *time.Location
}

// NewResolver builds a resolver. A nil location means UTC.
func NewResolver(units []linen.Unit, types []linen.ClothingType, loc *time.Location) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	r := Resolver{
		units: make(map[string]string, len(units)),
		types: make(map[string]string, len(types)),
		loc:   loc,
	}
	for _, u := range units {
		r.units[u.ID] = u.Name
	}
	for _, ct := range types {
		r.types[ct.ID] = ct.Name
	}
	return r
}

// Unit returns the unit name, or linen.UnknownUnitLabel.
func (r Resolver) Unit(id string) string {
	if name, ok := r.units[id]; ok {
		return name
	}
	return linen.UnknownUnitLabel
}

// ClothingType returns the type name, or linen.UnknownClothingTypeLabel.
func (r Resolver) ClothingType(id string) string {
	if name, ok := r.types[id]; ok {
		return name
	}
	return linen.UnknownClothingTypeLabel
}

func (r Resolver) Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format(DateLayout)
}
