package authkit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default lifecycle limits for one-time credentials.
const (
	// DefaultCodeTTL is how long a credential stays verifiable after issuance.
	DefaultCodeTTL = 15 * time.Minute

	// DefaultMaxCodeAttempts is how many wrong code guesses are tolerated
	// before the credential is destroyed.
	DefaultMaxCodeAttempts = 5
)

// Grant is the result of a successful verification. It references the user
// the credential belonged to; the session manager turns it into a bearer
// session.
type Grant struct {
	UserID string
	Email  string
}

// Verifier owns the one-time-credential lifecycle: issuance, expiry,
// attempt throttling and single-use consumption. It is safe for concurrent
// use; per-row serialization of the attempts counter is delegated to the
// AuthTokenStore.
type Verifier struct {
	Users  UserStore
	Tokens AuthTokenStore

	// CodeTTL overrides DefaultCodeTTL when positive.
	CodeTTL time.Duration

	// MaxAttempts overrides DefaultMaxCodeAttempts when positive.
	MaxAttempts int

	// Now is the clock; defaults to time.Now. Overridable in tests.
	Now func() time.Time
}

func (v *Verifier) codeTTL() time.Duration {
	if v.CodeTTL > 0 {
		return v.CodeTTL
	}
	return DefaultCodeTTL
}

func (v *Verifier) maxAttempts() int {
	if v.MaxAttempts > 0 {
		return v.MaxAttempts
	}
	return DefaultMaxCodeAttempts
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// RequestCredential issues a fresh (code, token) pair for an email and
// persists it, invalidating any credential previously issued for the same
// address. The pair is returned for delivery; the caller owns sending it.
// Returns ErrUserNotFound if no account exists for the email: the
// passwordless flow does not create users.
func (v *Verifier) RequestCredential(ctx context.Context, email string) (*Credential, error) {
	if _, err := v.Users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Only the latest credential may verify.
	if err := v.Tokens.DeleteAuthTokensForEmail(ctx, email); err != nil {
		return nil, err
	}

	cred, err := IssueCredential()
	if err != nil {
		return nil, err
	}

	row := &AuthToken{
		ID:        NewID(),
		Email:     email,
		Code:      cred.Code,
		Token:     cred.Token,
		Attempts:  0,
		CreatedAt: v.now(),
	}
	if err := v.Tokens.CreateAuthToken(ctx, row); err != nil {
		return nil, err
	}

	slog.Info("issued sign-in credential", "email", email, "token_id", row.ID)
	return cred, nil
}

// VerifyToken completes a magic-link sign-in. The credential is consumed on
// success; expiry deletes it as a side effect. Token verification does not
// touch the attempts counter: a link is one-shot by construction.
func (v *Verifier) VerifyToken(ctx context.Context, email, token string) (*Grant, error) {
	row, err := v.Tokens.GetAuthToken(ctx, email, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	if v.expired(row) {
		if _, err := v.Tokens.ConsumeAuthToken(ctx, email, row.ID); err != nil {
			return nil, err
		}
		return nil, ErrCredentialExpired
	}

	return v.consumeAndGrant(ctx, row)
}

// VerifyCode completes a typed-code sign-in. Wrong guesses are recorded on
// the credential row, which survives until either the code matches, the
// 15-minute window lapses, or the attempt ceiling is reached. The ceiling
// is a hard gate: once MaxAttempts failures are recorded, the next call
// destroys the credential no matter what code it carries.
func (v *Verifier) VerifyCode(ctx context.Context, email, code string) (*Grant, error) {
	row, err := v.Tokens.GetAuthTokenByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	// Expiry and exhaustion end the credential the same way: row gone,
	// negative result. Which reason wins when both hold does not matter.
	if v.expired(row) {
		if _, err := v.Tokens.ConsumeAuthToken(ctx, email, row.ID); err != nil {
			return nil, err
		}
		return nil, ErrCredentialExpired
	}
	if row.Attempts >= v.maxAttempts() {
		if _, err := v.Tokens.ConsumeAuthToken(ctx, email, row.ID); err != nil {
			return nil, err
		}
		return nil, ErrAttemptsExhausted
	}

	if code != row.Code {
		n, err := v.Tokens.IncrementAttempts(ctx, email, row.ID)
		if err != nil {
			return nil, err
		}
		slog.Info("wrong sign-in code", "email", email, "attempts", n)
		return nil, ErrInvalidCode
	}

	return v.consumeAndGrant(ctx, row)
}

func (v *Verifier) expired(row *AuthToken) bool {
	return v.now().Sub(row.CreatedAt) > v.codeTTL()
}

// consumeAndGrant resolves the owning user and consumes the credential.
// Consumption is conditional: if a concurrent verification got there first,
// the caller sees ErrCredentialNotFound rather than a second grant.
func (v *Verifier) consumeAndGrant(ctx context.Context, row *AuthToken) (*Grant, error) {
	user, err := v.Users.GetUserByEmail(ctx, row.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	removed, err := v.Tokens.ConsumeAuthToken(ctx, row.Email, row.ID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, ErrCredentialNotFound
	}

	return &Grant{UserID: user.ID, Email: user.Email}, nil
}
