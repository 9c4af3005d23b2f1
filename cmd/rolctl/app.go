package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/laundry-ledger/admin"
	"github.com/warp/laundry-ledger/aggregate"
	"github.com/warp/laundry-ledger/config"
	"github.com/warp/laundry-ledger/identity"
	"github.com/warp/laundry-ledger/ledger"
	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/linen/store"
	"github.com/warp/laundry-ledger/logger"
	"github.com/warp/laundry-ledger/report"
	"github.com/warp/laundry-ledger/report/pdf"
	"github.com/warp/laundry-ledger/report/xlsx"
	"github.com/warp/laundry-ledger/seed"
	"github.com/warp/laundry-ledger/store/sqlite"
)

// backend is what both store implementations provide.
type backend interface {
	linen.TxStore
	linen.SessionStore
}

// app holds the wired services for one invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    backend
	entities *linen.Entities
	identity *identity.Provider
	ledger   *ledger.Service
	engine   *aggregate.Engine
	reports  *report.Service
	admin    *admin.Service
	pdf      *pdf.Renderer
	xlsx     *xlsx.Renderer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	loc, err := cfg.Report.Location()
	if err != nil {
		return nil, err
	}

	var s backend
	switch cfg.Store.Driver {
	case config.DriverMemory:
		s = store.NewMemory()
	default:
		s, err = sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, log: log, store: s, entities: linen.NewEntities(s)}
	if err := a.bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}

	clock := time.Now
	a.identity = identity.NewProvider(a.entities, s, logger.Component(log, "identity"))
	a.ledger = ledger.NewService(a.entities, clock, logger.Component(log, "ledger"))
	a.engine = aggregate.NewEngine(a.entities, clock, loc)
	a.reports = report.NewService(a.entities, a.engine, logger.Component(log, "report"))
	a.admin = admin.NewService(a.entities, cfg.Auth.BcryptCost, clock, logger.Component(log, "admin"))
	a.pdf = pdf.NewRenderer(cfg.App.Name)
	a.xlsx = xlsx.NewRenderer()
	return a, nil
}

func (a *app) bootstrap(ctx context.Context) error {
	defaults := seed.Defaults{}
	if a.cfg.Store.SeedDefaults {
		var err error
		if defaults, err = seed.Demo(a.cfg.Auth.BcryptCost, time.Now()); err != nil {
			return err
		}
	}
	rep, err := seed.Bootstrap(ctx, a.entities, defaults, logger.Component(a.log, "seed"))
	if err != nil {
		return fmt.Errorf("bootstrap store: %w", err)
	}
	for c, n := range rep.Quarantined {
		a.log.Warn().Str("collection", string(c)).Int("records", n).Msg("collection was unreadable and has been reset")
	}
	return nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("close store")
	}
}

// principal resolves the signed-in user.
func (a *app) principal(ctx context.Context) (linen.Principal, error) {
	p, err := a.identity.Current(ctx)
	if errors.Is(err, linen.ErrNoSession) {
		return p, fmt.Errorf("%w: run 'rolctl signin' first", err)
	}
	return p, err
}

func (a *app) render(doc report.Document, format string) ([]byte, error) {
	switch format {
	case "pdf":
		return a.pdf.Render(doc)
	case "xlsx":
		return a.xlsx.Render(doc)
	default:
		return nil, &linen.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q, want pdf or xlsx", format)}
	}
}

// exitCode maps error kinds to process exit codes.
func exitCode(err error) int {
	switch {
	case linen.IsClientError(err), errors.Is(err, linen.ErrInvalidCredentials):
		return 2
	case linen.IsNotFound(err):
		return 3
	case errors.Is(err, linen.ErrNoSession):
		return 4
	default:
		return 1
	}
}
