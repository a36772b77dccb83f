package redis

import (
	"context"
	"errors"
	"strings"

	goredis "github.com/go-redis/redis/v8"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/ports/repository"
)

var _ repository.TokenStore = (*TokenStore)(nil)

// TokenStore reads the operator bearer token the auth service keeps in
// Redis. The console never writes or refreshes it.
type TokenStore struct {
	client RedisClient
	key    string
}

func NewTokenStore(client RedisClient, key string) *TokenStore {
	if key == "" {
		key = "auth_token"
	}
	return &TokenStore{client: client, key: key}
}

func (s *TokenStore) Token(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrAuthRequired
		}
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", domain.ErrAuthRequired
	}
	return v, nil
}
