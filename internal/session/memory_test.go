package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/filevault/internal/entity"
	"github.com/filevault/filevault/internal/session"
)

func TestMemoryStore(t *testing.T) {
	s := session.NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "unknown")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, s.Set(ctx, "token-1", "owner-1", time.Hour))

	ownerID, err := s.Get(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", ownerID)

	require.NoError(t, s.Del(ctx, "token-1"))
	_, err = s.Get(ctx, "token-1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := session.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "token-1", "owner-1", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := s.Get(ctx, "token-1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
