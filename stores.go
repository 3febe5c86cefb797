package authkit

import (
	"context"
	"time"
)

// User is an identity record. Users are created on first successful OAuth
// authentication via upsert-by-email; the passwordless flow requires the
// account to already exist.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthToken is a one-time credential scoped to a single email address. At
// most one token is active per email: issuing a new one deletes all prior
// tokens for that address.
type AuthToken struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`  // 6 ASCII digits, typed by the user
	Token     string    `json:"token"` // opaque, carried by the magic link
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a bearer credential. The ID doubles as the secret presented in
// the Authorization header; it is an opaque lookup key, never a signed or
// self-describing token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore manages identity records, keyed by id and by email.
type UserStore interface {
	// GetUserByID retrieves a user by id. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email (exact match, case sensitive
	// as stored). Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpsertUserByEmail inserts a new user if none exists for u.Email,
	// otherwise overwrites name and avatar with the supplied values. The
	// returned row carries the stable id.
	UpsertUserByEmail(ctx context.Context, u *User) (*User, error)
}

// AuthTokenStore manages one-time credentials. Implementations must make
// IncrementAttempts atomic relative to concurrent calls for the same row,
// and ConsumeAuthToken a conditional delete so that two racing verification
// attempts cannot both consume the same credential.
type AuthTokenStore interface {
	// CreateAuthToken persists a fresh credential row.
	CreateAuthToken(ctx context.Context, t *AuthToken) error

	// GetAuthTokenByEmail returns the active credential for an email.
	// Returns ErrNotFound if absent.
	GetAuthTokenByEmail(ctx context.Context, email string) (*AuthToken, error)

	// GetAuthToken returns the credential matching both email and token.
	// Returns ErrNotFound if absent.
	GetAuthToken(ctx context.Context, email, token string) (*AuthToken, error)

	// IncrementAttempts atomically adds one to the attempts counter of the
	// identified row and returns the new value.
	IncrementAttempts(ctx context.Context, email, id string) (int, error)

	// ConsumeAuthToken deletes the identified row and reports whether this
	// call removed it. A false return with a nil error means another caller
	// consumed it first.
	ConsumeAuthToken(ctx context.Context, email, id string) (bool, error)

	// DeleteAuthTokensForEmail removes every credential for an email.
	// Deleting from an empty set is not an error.
	DeleteAuthTokensForEmail(ctx context.Context, email string) error
}

// SessionStore manages bearer sessions, keyed by the bearer token itself.
type SessionStore interface {
	// CreateSession persists a new session row.
	CreateSession(ctx context.Context, s *Session) error

	// GetSession retrieves a session by bearer token. Returns ErrNotFound
	// if absent.
	GetSession(ctx context.Context, id string) (*Session, error)

	// DeleteSession removes a session. Deleting an absent session is a
	// no-op, not an error.
	DeleteSession(ctx context.Context, id string) error
}
