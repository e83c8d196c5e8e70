package auth

import (
	"context"
	"fmt"

	"community-hub/domain"
	"community-hub/errors"
)

// UserReader is the slice of the user store the resolver needs.
type UserReader interface {
	GetUser(ctx context.Context, userID string) (domain.Principal, error)
}

// IdentityResolver turns a bearer credential into an authenticated
// principal. Consumed once, at connection establishment.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.Principal, error)
}

type Resolver struct {
	secret []byte
	users  UserReader
}

func NewResolver(secret []byte, users UserReader) *Resolver {
	return &Resolver{secret: secret, users: users}
}

// Resolve validates the token, loads the user record it names and
// refuses blocked or missing accounts. Any failure maps to the
// unauthenticated taxonomy so the handshake is rejected outright.
func (r *Resolver) Resolve(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, fmt.Errorf("missing token: %w", errors.ErrUnauthenticated)
	}

	claims, err := ValidateToken(r.secret, token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid token: %w", errors.ErrUnauthenticated)
	}

	principal, err := r.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return domain.Principal{}, fmt.Errorf("unknown user %q: %w", claims.Subject, errors.ErrUnauthenticated)
		}
		return domain.Principal{}, fmt.Errorf("identity lookup: %w", errors.ErrUpstream)
	}
	if principal.Status == domain.StatusBlocked {
		return domain.Principal{}, errors.ErrBlocked
	}
	return principal, nil
}
