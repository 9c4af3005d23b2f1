/*
service.go - Ledger write path

PURPOSE:
  CreateROL is the only way a record enters the ledger. It validates the
  request, checks every reference, assigns the next sequence number and
  appends, all under one single-writer transaction.

NUMBERING:
  number = last issued + 1, rendered as six digits ("000001"). The last
  issued value is persisted per collection and never below the ledger
  size, so on a clean ledger it equals count(rols) + 1.

  Issuing the number and appending happen inside the same WithTx, and the
  store serializes writers, so N concurrent calls receive 1..N exactly
  once. Corrupt-state recovery quarantines ledger records but keeps the
  sequence, so their numbers are not issued again.

FAILURE ORDER:
  1. Role lacks CreateROL capability   -> ErrForbidden
  2. Request shape (items, quantities) -> ValidationError
  3. Author user missing               -> NotFoundError{users}
  4. Author unit missing               -> NotFoundError{units}
  5. Unknown clothing type on an item  -> ValidationError{items[i].clothingTypeId}

  Any failure leaves the store untouched.

EXAMPLE:
  svc := ledger.NewService(entities, nil, log)
  rol, err := svc.CreateROL(ctx, principal, ledger.CreateRequest{
      Items: []ledger.ItemInput{
          {ClothingTypeID: shirtID, Quantity: 2, Weight: decimal.RequireFromString("1.5")},
      },
  })
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/validation"
)

// ItemInput is one requested line of a new ROL.
type ItemInput struct {
	ClothingTypeID string          `json:"clothingTypeId" validate:"required"`
	Quantity       int             `json:"quantity" validate:"gte=1"`
	Weight         decimal.Decimal `json:"weight" validate:"gte=0"`
}

// CreateRequest carries everything the author supplies. Signatures are
// image data URLs and may be empty.
type CreateRequest struct {
	Items            []ItemInput `json:"items" validate:"required,min=1,dive"`
	ClientSignature  string      `json:"clientSignature"`
	LaundrySignature string      `json:"laundrySignature"`
}

type Service struct {
	entities *linen.Entities
	validate *validation.Validator
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// NewService creates the ledger service. A nil clock means time.Now.
func NewService(entities *linen.Entities, clock func() time.Time, log zerolog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		entities: entities,
		validate: validation.New(),
		now:      clock,
		newID:    uuid.NewString,
		log:      log,
	}
}

// CreateROL validates and appends a new record authored by p.
func (s *Service) CreateROL(ctx context.Context, p linen.Principal, req CreateRequest) (linen.ROL, error) {
	if !p.Can().CreateROL {
		return linen.ROL{}, fmt.Errorf("create rol as %q: %w", p.Role, linen.ErrForbidden)
	}
	if err := s.validate.Struct(req); err != nil {
		return linen.ROL{}, err
	}
	if !p.Sector.Valid() {
		return linen.ROL{}, &linen.ValidationError{Field: "sector", Reason: fmt.Sprintf("unknown sector %q", p.Sector)}
	}

	var created linen.ROL
	err := s.entities.WithTx(ctx, func(tx linen.Repo) error {
		if _, err := tx.User(ctx, p.UserID); err != nil {
			return err
		}
		if _, err := tx.Unit(ctx, p.UnitID); err != nil {
			return err
		}
		for i, item := range req.Items {
			if _, err := tx.ClothingType(ctx, item.ClothingTypeID); err != nil {
				if errors.Is(err, linen.ErrNotFound) {
					return &linen.ValidationError{
						Field:  fmt.Sprintf("items[%d].clothingTypeId", i),
						Reason: fmt.Sprintf("unknown clothing type %q", item.ClothingTypeID),
					}
				}
				return err
			}
		}

		seq, err := tx.NextSequence(ctx, linen.CollectionROLs)
		if err != nil {
			return fmt.Errorf("number ledger record: %w", err)
		}

		rec := s.build(p, req, linen.FormatNumber(seq))
		if err := tx.AppendROL(ctx, rec); err != nil {
			return fmt.Errorf("append rol %s: %w", rec.Number, err)
		}
		created = rec
		return nil
	})
	if err != nil {
		return linen.ROL{}, err
	}

	s.log.Info().
		Str("number", created.Number).
		Str("author", created.AuthorUserID).
		Str("unit", created.UnitID).
		Str("kind", string(created.Kind())).
		Int("items", len(created.Items)).
		Msg("rol created")
	return created, nil
}

func (s *Service) build(p linen.Principal, req CreateRequest, number string) linen.ROL {
	now := s.now().UTC()
	items := make([]linen.LineItem, len(req.Items))
	for i, in := range req.Items {
		items[i] = linen.LineItem{
			ID:             s.newID(),
			ClothingTypeID: in.ClothingTypeID,
			Quantity:       in.Quantity,
			Weight:         in.Weight,
		}
	}
	return linen.ROL{
		ID:               s.newID(),
		Number:           number,
		Date:             now,
		UnitID:           p.UnitID,
		Sector:           p.Sector,
		Items:            items,
		WeighingTime:     now,
		ClientSignature:  req.ClientSignature,
		LaundrySignature: req.LaundrySignature,
		AuthorUserID:     p.UserID,
		CreatedAt:        now,
	}
}
