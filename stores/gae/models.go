//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	ak "github.com/smartdash/authkit"
)

// UserEntity is the Datastore entity for users.
// Keyed by email so that upsert-by-email is a plain transactional get/put.
type UserEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	ID        string         `datastore:"id"`
	Email     string         `datastore:"email"`
	Name      string         `datastore:"name,noindex"`
	AvatarURL string         `datastore:"avatar_url,noindex"`
	CreatedAt time.Time      `datastore:"created_at"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *ak.User {
	return &ak.User{
		ID:        e.ID,
		Email:     e.Email,
		Name:      e.Name,
		AvatarURL: e.AvatarURL,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// UserIDEntity maps a user id back to the email the user row is keyed by.
type UserIDEntity struct {
	Key   *datastore.Key `datastore:"__key__"`
	Email string         `datastore:"email"`
}

// AuthTokenEntity is the Datastore entity for one-time credentials.
// Keyed by the row id; the email property is indexed for lookups.
type AuthTokenEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Email     string         `datastore:"email"`
	Code      string         `datastore:"code,noindex"`
	Token     string         `datastore:"token"`
	Attempts  int            `datastore:"attempts,noindex"`
	CreatedAt time.Time      `datastore:"created_at"`
}

func (e *AuthTokenEntity) ToAuthToken() *ak.AuthToken {
	return &ak.AuthToken{
		ID:        e.Key.Name,
		Email:     e.Email,
		Code:      e.Code,
		Token:     e.Token,
		Attempts:  e.Attempts,
		CreatedAt: e.CreatedAt,
	}
}

// SessionEntity is the Datastore entity for bearer sessions, keyed by the
// bearer token.
type SessionEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

func (e *SessionEntity) ToSession() *ak.Session {
	return &ak.Session{
		ID:        e.Key.Name,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
	}
}
