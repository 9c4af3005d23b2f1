// Package identity is the reference identity provider for the ledger.
//
// The ledger never authenticates anybody. It consumes a linen.Principal and
// trusts it. This package is the collaborator that produces one: it checks
// an e-mail and secret against the stored bcrypt hash, records the signed-in
// user in the session slot, and resolves the slot back into a Principal.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/laundry-ledger/linen"
)

// HashCredential returns the bcrypt hash stored in User.Credential.
func HashCredential(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential reports whether secret matches the stored hash.
func CheckCredential(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

type Provider struct {
	entities *linen.Entities
	sessions linen.SessionStore
	log      zerolog.Logger
}

func NewProvider(entities *linen.Entities, sessions linen.SessionStore, log zerolog.Logger) *Provider {
	return &Provider{entities: entities, sessions: sessions, log: log}
}

// SignIn verifies the credentials and makes the user the active session.
func (p *Provider) SignIn(ctx context.Context, email, secret string) (linen.Principal, error) {
	u, err := p.entities.UserByEmail(ctx, email)
	if errors.Is(err, linen.ErrNotFound) {
		return linen.Principal{}, linen.ErrInvalidCredentials
	}
	if err != nil {
		return linen.Principal{}, err
	}
	if !CheckCredential(u.Credential, secret) {
		p.log.Warn().Str("email", email).Msg("sign-in rejected")
		return linen.Principal{}, linen.ErrInvalidCredentials
	}
	if err := p.sessions.SetSession(ctx, u.ID); err != nil {
		return linen.Principal{}, err
	}
	p.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("session started")
	return linen.PrincipalOf(u), nil
}

// SignOut clears the session slot.
func (p *Provider) SignOut(ctx context.Context) error {
	return p.sessions.ClearSession(ctx)
}

// Current resolves the session slot into a principal. The profile is read
// fresh, so role or unit changes apply to the next operation.
func (p *Provider) Current(ctx context.Context) (linen.Principal, error) {
	userID, ok, err := p.sessions.CurrentSession(ctx)
	if err != nil {
		return linen.Principal{}, err
	}
	if !ok {
		return linen.Principal{}, linen.ErrNoSession
	}
	return p.As(ctx, userID)
}

// As resolves a principal for a user id without touching the session slot.
func (p *Provider) As(ctx context.Context, userID string) (linen.Principal, error) {
	u, err := p.entities.User(ctx, userID)
	if err != nil {
		return linen.Principal{}, err
	}
	return linen.PrincipalOf(u), nil
}
