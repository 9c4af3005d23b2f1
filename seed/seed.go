/*
Package seed provides the default reference data and the startup bootstrap.

PURPOSE:
  A fresh store needs units, clothing types and at least an admin account
  before anyone can record a ROL. Bootstrap puts them there, and only
  there: a collection that already holds records is left exactly as it is.
  Nothing is ever wiped on start.

CORRUPT STATE:
  If a collection cannot be decoded, Bootstrap logs it, moves that
  collection's rows to quarantine, and seeds it again as if it were new.
  Other collections are not touched. The collection's sequence survives,
  so a quarantined ledger does not make ROL numbers start over.

DEFAULTS:
  Units:          Hospital Unit A, B, C
  Clothing types: Shirt, Trousers, Apron, Bed Sheet, Towel, Full Uniform
  Users:          one admin, two users (clean and dirty sector), one supervisor

  Seed ids are name-based UUIDs, so the same defaults always get the same
  ids and a reseed after quarantine lines up with references in other
  collections.

USAGE:
  defaults, err := seed.Demo(bcrypt.DefaultCost, time.Now())
  report, err := seed.Bootstrap(ctx, entities, defaults, log)
*/
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/laundry-ledger/identity"
	"github.com/warp/laundry-ledger/linen"
)

// Defaults is the reference data inserted into empty collections.
type Defaults struct {
	Units         []linen.Unit
	ClothingTypes []linen.ClothingType
	Users         []linen.User
}

// For returns the defaults of a collection. The ledger has none.
func (d Defaults) For(c linen.Collection) []linen.Keyed {
	var out []linen.Keyed
	switch c {
	case linen.CollectionUnits:
		for _, u := range d.Units {
			out = append(out, u)
		}
	case linen.CollectionClothingTypes:
		for _, ct := range d.ClothingTypes {
			out = append(out, ct)
		}
	case linen.CollectionUsers:
		for _, u := range d.Users {
			out = append(out, u)
		}
	}
	return out
}

// ID derives the stable id of a seeded entity.
func ID(c linen.Collection, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("laundry-ledger/"+string(c)+"/"+key)).String()
}

type demoUser struct {
	key, name, email, secret string
	role                     linen.Role
	unit                     string
	sector                   linen.Sector
}

var demoUsers = []demoUser{
	{"admin", "System Admin", "admin@hospital.com", "admin123", linen.RoleAdmin, "a", linen.SectorClean},
	{"maria", "Maria Silva", "maria@hospital.com", "user123", linen.RoleUser, "a", linen.SectorClean},
	{"joao", "Joao Santos", "joao@hospital.com", "b@123456", linen.RoleUser, "b", linen.SectorDirty},
	{"supervisor", "Carlos Supervisor", "supervisor@hospital.com", "supervisor123", linen.RoleSupervisor, "a", linen.SectorClean},
}

// Demo builds the default data set. Credentials are hashed with cost.
func Demo(cost int, now time.Time) (Defaults, error) {
	now = now.UTC()
	d := Defaults{}
	for _, key := range []string{"a", "b", "c"} {
		d.Units = append(d.Units, linen.Unit{
			ID:        ID(linen.CollectionUnits, key),
			Name:      "Hospital Unit " + string(rune('A'+key[0]-'a')),
			CreatedAt: now,
		})
	}
	for _, name := range []string{"Shirt", "Trousers", "Apron", "Bed Sheet", "Towel", "Full Uniform"} {
		d.ClothingTypes = append(d.ClothingTypes, linen.ClothingType{
			ID:        ID(linen.CollectionClothingTypes, name),
			Name:      name,
			CreatedAt: now,
		})
	}
	for _, du := range demoUsers {
		hash, err := identity.HashCredential(du.secret, cost)
		if err != nil {
			return Defaults{}, err
		}
		d.Users = append(d.Users, linen.User{
			ID:         ID(linen.CollectionUsers, du.key),
			Name:       du.name,
			Email:      du.email,
			Credential: hash,
			Role:       du.role,
			UnitID:     ID(linen.CollectionUnits, du.unit),
			Sector:     du.sector,
			CreatedAt:  now,
		})
	}
	return d, nil
}

// Report summarizes what Bootstrap did per collection.
type Report struct {
	Seeded      map[linen.Collection]int
	Quarantined map[linen.Collection]int
}

// Bootstrap recovers corrupt collections and seeds empty ones.
func Bootstrap(ctx context.Context, entities *linen.Entities, defaults Defaults, log zerolog.Logger) (Report, error) {
	report := Report{
		Seeded:      make(map[linen.Collection]int),
		Quarantined: make(map[linen.Collection]int),
	}

	for _, c := range linen.Collections {
		err := entities.Verify(ctx, c)
		if err == nil {
			continue
		}
		if !errors.Is(err, linen.ErrCorruptState) {
			return report, fmt.Errorf("bootstrap %s: %w", c, err)
		}
		log.Error().Err(err).Str("collection", string(c)).Msg("corrupt collection, quarantining and reseeding")
		n, qErr := entities.Store().Quarantine(ctx, c)
		if qErr != nil {
			return report, fmt.Errorf("quarantine %s: %w", c, qErr)
		}
		report.Quarantined[c] = n
	}

	for _, c := range linen.Collections {
		values := defaults.For(c)
		if len(values) == 0 {
			continue
		}
		n, err := entities.SeedIfEmpty(ctx, c, values)
		if err != nil {
			return report, fmt.Errorf("seed %s: %w", c, err)
		}
		if n > 0 {
			log.Info().Str("collection", string(c)).Int("records", n).Msg("seeded defaults")
		}
		report.Seeded[c] = n
	}
	return report, nil
}
