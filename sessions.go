package authkit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SessionManager issues and revokes bearer sessions. It is the single
// session-issuing authority: both the passwordless and OAuth branches end
// here. Sessions carry no expiry; repeated issuance creates concurrent
// valid sessions for the same user.
type SessionManager struct {
	Store SessionStore
}

// Issue mints an opaque bearer token and persists a session for the user.
func (m *SessionManager) Issue(ctx context.Context, userID string) (string, error) {
	bearer, err := GenerateSecureToken()
	if err != nil {
		return "", err
	}
	s := &Session{
		ID:        bearer,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := m.Store.CreateSession(ctx, s); err != nil {
		return "", err
	}
	slog.Info("issued session", "user_id", userID)
	return bearer, nil
}

// Resolve looks a bearer token up and returns the owning user id, or ""
// with a nil error when no such session exists.
func (m *SessionManager) Resolve(ctx context.Context, bearer string) (string, error) {
	if bearer == "" {
		return "", nil
	}
	s, err := m.Store.GetSession(ctx, bearer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return s.UserID, nil
}

// Revoke deletes the session for a bearer token. Revoking an unknown token
// is a no-op.
func (m *SessionManager) Revoke(ctx context.Context, bearer string) error {
	if bearer == "" {
		return nil
	}
	return m.Store.DeleteSession(ctx, bearer)
}

// BearerFromRequest extracts the bearer token from an Authorization header,
// or returns "" when the header is missing or not a Bearer scheme.
func BearerFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
