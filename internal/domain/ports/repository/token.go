package repository

import "context"

// TokenStore exposes the auth token kept in persistent storage. The console
// only ever reads it; issuing and refreshing belong to the auth service.
type TokenStore interface {
	// Token returns the current bearer token, or domain.ErrAuthRequired
	// when none is stored.
	Token(ctx context.Context) (string, error)
}
