// Package session maps opaque auth tokens to user ids with TTL expiry.
// Token issuance lives in the API layer; this package only stores the
// mapping.
package session

import (
	"context"
	"time"
)

// Store is the session collaborator contract. Get returns
// entity.ErrNotFound for absent or expired tokens.
type Store interface {
	Get(ctx context.Context, token string) (string, error)
	Set(ctx context.Context, token, ownerID string, ttl time.Duration) error
	Del(ctx context.Context, token string) error
	Ping(ctx context.Context) error
}

// keyPrefix namespaces auth tokens in the backing store.
const keyPrefix = "auth_"
