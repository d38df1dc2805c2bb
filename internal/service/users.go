package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/filevault/filevault/internal/entity"
	"github.com/filevault/filevault/internal/store"
)

// Users handles account registration and credential checks.
type Users struct {
	meta *store.Store
}

func NewUsers(meta *store.Store) *Users {
	return &Users{meta: meta}
}

// Register creates an account. The email must not already be registered.
func (s *Users) Register(ctx context.Context, email, password string) (*entity.User, error) {
	if email == "" {
		return nil, entity.Invalid("Missing email")
	}
	if password == "" {
		return nil, entity.Invalid("Missing password")
	}

	_, err := s.meta.UserByEmail(ctx, email)
	if err == nil {
		return nil, entity.ErrEmailTaken
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	return s.meta.CreateUser(ctx, &entity.User{
		Email:        email,
		PasswordHash: hashPassword(password),
	})
}

// Authenticate returns the user matching the credentials, or
// entity.ErrNotFound.
func (s *Users) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := s.meta.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.PasswordHash != hashPassword(password) {
		return nil, entity.ErrNotFound
	}
	return user, nil
}

func hashPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}
