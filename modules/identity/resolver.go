// Package identity turns a bearer credential into the identity of a connection.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/directory"
)

// Kind classifies an authentication failure.
type Kind string

const (
	MissingCredential Kind = "missing_credential"
	InvalidCredential Kind = "invalid_credential"
	UnknownUser       Kind = "unknown_user"
)

// AuthError is returned when a handshake must be refused.
type AuthError struct {
	Kind Kind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Resolver authenticates credentials against the token manager and user directory.
type Resolver struct {
	tokens *TokenManager
	users  directory.Directory
}

// NewResolver creates a new Resolver.
func NewResolver(tokens *TokenManager, users directory.Directory) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Authenticate resolves credential to an identity.
// Failures are *AuthError except directory errors other than not-found, which are returned wrapped.
func (r *Resolver) Authenticate(ctx context.Context, credential string) (user.Identity, error) {
	if credential == "" {
		return user.Identity{}, &AuthError{Kind: MissingCredential}
	}

	claims, err := r.tokens.ValidateToken(credential)
	if err != nil {
		return user.Identity{}, &AuthError{Kind: InvalidCredential, Err: err}
	}

	u, err := r.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return user.Identity{}, &AuthError{Kind: UnknownUser, Err: err}
		}
		return user.Identity{}, fmt.Errorf("failed to resolve user %s: %w", claims.UserID, err)
	}
	return u.ToIdentity(), nil
}
