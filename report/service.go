package report

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/warp/laundry-ledger/aggregate"
	"github.com/warp/laundry-ledger/linen"
)

// Service loads ledger data for a principal and formats it.
type Service struct {
	entities *linen.Entities
	engine   *aggregate.Engine
	log      zerolog.Logger
}

func NewService(entities *linen.Entities, engine *aggregate.Engine, log zerolog.Logger) *Service {
	return &Service{entities: entities, engine: engine, log: log}
}

func (s *Service) resolver(ctx context.Context) (Resolver, error) {
	units, err := s.entities.Units(ctx)
	if err != nil {
		return Resolver{}, err
	}
	types, err := s.entities.ClothingTypes(ctx)
	if err != nil {
		return Resolver{}, err
	}
	return NewResolver(units, types, s.engine.Location()), nil
}

// Single formats the ROL with the given number. A record p may not see is
// reported as not found.
func (s *Service) Single(ctx context.Context, p linen.Principal, number string) (Document, error) {
	rec, err := s.entities.ROLByNumber(ctx, number)
	if err != nil {
		return Document{}, err
	}
	if !p.CanSee(rec) {
		return Document{}, &linen.NotFoundError{Collection: linen.CollectionROLs, ID: number}
	}
	res, err := s.resolver(ctx)
	if err != nil {
		return Document{}, err
	}
	return FormatSingle(rec, res), nil
}

// Batch formats every visible record matching f.
func (s *Service) Batch(ctx context.Context, p linen.Principal, f aggregate.Filter) (Document, error) {
	records, err := s.engine.Query(ctx, p, f)
	if err != nil {
		return Document{}, err
	}
	res, err := s.resolver(ctx)
	if err != nil {
		return Document{}, err
	}
	doc := FormatBatch(records, res, f.Window.Label())
	s.log.Debug().
		Str("period", f.Window.Label()).
		Int("records", len(records)).
		Int("rows", len(doc.Batch.Rows)).
		Msg("batch report formatted")
	return doc, nil
}
