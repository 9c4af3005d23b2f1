/*
Package admin manages the reference entities: units, clothing types and
users.

PURPOSE:
  Every mutation requires the ManageReference capability. Listing units and
  clothing types is open to any role because ROL forms need them; listing
  users is not, and never returns credential hashes.

RULES:
  - Names are required; e-mail addresses are unique ignoring case.
  - Secrets are stored as bcrypt hashes.
  - A user must point at an existing unit.
  - The signed-in admin cannot delete their own account.
  - Deleting a unit or clothing type never touches the ledger. Records
    that referenced it render with a placeholder label.
*/
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/laundry-ledger/identity"
	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/validation"
)

type Service struct {
	entities   *linen.Entities
	validate   *validation.Validator
	bcryptCost int
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates the admin service. A nil clock means time.Now.
func NewService(entities *linen.Entities, bcryptCost int, clock func() time.Time, log zerolog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		entities:   entities,
		validate:   validation.New(),
		bcryptCost: bcryptCost,
		now:        clock,
		log:        log,
	}
}

func (s *Service) authorize(p linen.Principal, action string) error {
	if !p.Can().ManageReference {
		return fmt.Errorf("%s as %q: %w", action, p.Role, linen.ErrForbidden)
	}
	return nil
}

// =============================================================================
// UNITS
// =============================================================================

type UnitInput struct {
	Name string `json:"name" validate:"required"`
}

func (s *Service) Units(ctx context.Context) ([]linen.Unit, error) {
	return s.entities.Units(ctx)
}

func (s *Service) CreateUnit(ctx context.Context, p linen.Principal, in UnitInput) (linen.Unit, error) {
	if err := s.authorize(p, "create unit"); err != nil {
		return linen.Unit{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return linen.Unit{}, err
	}
	u := linen.Unit{ID: uuid.NewString(), Name: in.Name, CreatedAt: s.now().UTC()}
	if err := s.entities.InsertUnit(ctx, u); err != nil {
		return linen.Unit{}, err
	}
	s.log.Info().Str("unit_id", u.ID).Str("name", u.Name).Msg("unit created")
	return u, nil
}

func (s *Service) UpdateUnit(ctx context.Context, p linen.Principal, id string, in UnitInput) (linen.Unit, error) {
	if err := s.authorize(p, "update unit"); err != nil {
		return linen.Unit{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return linen.Unit{}, err
	}
	var out linen.Unit
	err := s.entities.WithTx(ctx, func(tx linen.Repo) error {
		var err error
		out, err = tx.UpdateUnit(ctx, id, linen.UnitPatch{Name: &in.Name})
		return err
	})
	return out, err
}

func (s *Service) DeleteUnit(ctx context.Context, p linen.Principal, id string) error {
	if err := s.authorize(p, "delete unit"); err != nil {
		return err
	}
	if err := s.entities.DeleteUnit(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("unit_id", id).Msg("unit deleted")
	return nil
}

// =============================================================================
// CLOTHING TYPES
// =============================================================================

type ClothingTypeInput struct {
	Name string `json:"name" validate:"required"`
}

func (s *Service) ClothingTypes(ctx context.Context) ([]linen.ClothingType, error) {
	return s.entities.ClothingTypes(ctx)
}

func (s *Service) CreateClothingType(ctx context.Context, p linen.Principal, in ClothingTypeInput) (linen.ClothingType, error) {
	if err := s.authorize(p, "create clothing type"); err != nil {
		return linen.ClothingType{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return linen.ClothingType{}, err
	}
	ct := linen.ClothingType{ID: uuid.NewString(), Name: in.Name, CreatedAt: s.now().UTC()}
	if err := s.entities.InsertClothingType(ctx, ct); err != nil {
		return linen.ClothingType{}, err
	}
	s.log.Info().Str("clothing_type_id", ct.ID).Str("name", ct.Name).Msg("clothing type created")
	return ct, nil
}

func (s *Service) UpdateClothingType(ctx context.Context, p linen.Principal, id string, in ClothingTypeInput) (linen.ClothingType, error) {
	if err := s.authorize(p, "update clothing type"); err != nil {
		return linen.ClothingType{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return linen.ClothingType{}, err
	}
	var out linen.ClothingType
	err := s.entities.WithTx(ctx, func(tx linen.Repo) error {
		var err error
		out, err = tx.UpdateClothingType(ctx, id, linen.ClothingTypePatch{Name: &in.Name})
		return err
	})
	return out, err
}

func (s *Service) DeleteClothingType(ctx context.Context, p linen.Principal, id string) error {
	if err := s.authorize(p, "delete clothing type"); err != nil {
		return err
	}
	if err := s.entities.DeleteClothingType(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("clothing_type_id", id).Msg("clothing type deleted")
	return nil
}

// =============================================================================
// USERS
// =============================================================================

type UserInput struct {
	Name     string       `json:"name" validate:"required"`
	Email    string       `json:"email" validate:"required,email"`
	Password string       `json:"password" validate:"required,min=6"`
	Role     linen.Role   `json:"role" validate:"required,oneof=admin user supervisor"`
	UnitID   string       `json:"unitId" validate:"required"`
	Sector   linen.Sector `json:"sector" validate:"required,oneof=Clean Dirty"`
}

// UserUpdate changes only the non-nil fields.
type UserUpdate struct {
	Name     *string       `json:"name" validate:"omitempty,min=1"`
	Email    *string       `json:"email" validate:"omitempty,email"`
	Password *string       `json:"password" validate:"omitempty,min=6"`
	Role     *linen.Role   `json:"role" validate:"omitempty,oneof=admin user supervisor"`
	UnitID   *string       `json:"unitId" validate:"omitempty,min=1"`
	Sector   *linen.Sector `json:"sector" validate:"omitempty,oneof=Clean Dirty"`
}

// Users lists accounts without their credential hashes.
func (s *Service) Users(ctx context.Context, p linen.Principal) ([]linen.User, error) {
	if err := s.authorize(p, "list users"); err != nil {
		return nil, err
	}
	users, err := s.entities.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Credential = ""
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, p linen.Principal, in UserInput) (linen.User, error) {
	if err := s.authorize(p, "create user"); err != nil {
		return linen.User{}, err
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return linen.User{}, err
	}
	hash, err := identity.HashCredential(in.Password, s.bcryptCost)
	if err != nil {
		return linen.User{}, err
	}

	u := linen.User{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.Name),
		Email:      in.Email,
		Credential: hash,
		Role:       in.Role,
		UnitID:     in.UnitID,
		Sector:     in.Sector,
		CreatedAt:  s.now().UTC(),
	}
	err = s.entities.WithTx(ctx, func(tx linen.Repo) error {
		if err := emailAvailable(ctx, tx, u.Email, ""); err != nil {
			return err
		}
		if _, err := tx.Unit(ctx, u.UnitID); err != nil {
			return err
		}
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return linen.User{}, err
	}
	s.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user created")
	u.Credential = ""
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, p linen.Principal, id string, in UserUpdate) (linen.User, error) {
	if err := s.authorize(p, "update user"); err != nil {
		return linen.User{}, err
	}
	in.Name = trimmed(in.Name)
	in.Email = trimmed(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return linen.User{}, err
	}

	patch := linen.UserPatch{Name: in.Name, Email: in.Email, Role: in.Role, UnitID: in.UnitID, Sector: in.Sector}
	if in.Password != nil {
		hash, err := identity.HashCredential(*in.Password, s.bcryptCost)
		if err != nil {
			return linen.User{}, err
		}
		patch.Credential = &hash
	}

	var out linen.User
	err := s.entities.WithTx(ctx, func(tx linen.Repo) error {
		if in.Email != nil {
			if err := emailAvailable(ctx, tx, *in.Email, id); err != nil {
				return err
			}
		}
		if in.UnitID != nil {
			if _, err := tx.Unit(ctx, *in.UnitID); err != nil {
				return err
			}
		}
		var err error
		out, err = tx.UpdateUser(ctx, id, patch)
		return err
	})
	if err != nil {
		return linen.User{}, err
	}
	s.log.Info().Str("user_id", id).Msg("user updated")
	out.Credential = ""
	return out, nil
}

func (s *Service) DeleteUser(ctx context.Context, p linen.Principal, id string) error {
	if err := s.authorize(p, "delete user"); err != nil {
		return err
	}
	if id == p.UserID {
		return &linen.ValidationError{Field: "id", Reason: "cannot delete the signed-in account"}
	}
	if err := s.entities.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

// emailAvailable fails when another user already holds email.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func emailAvailable(ctx context.Context, tx linen.Repo, email, selfID string) error {
	existing, err := tx.UserByEmail(ctx, email)
	if errors.Is(err, linen.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return &linen.ValidationError{Field: "email", Reason: "is already registered"}
}
