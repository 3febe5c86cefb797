package authkit

import (
	"errors"

	oa2 "github.com/smartdash/authkit/oauth2"
)

// Sentinel errors returned by stores and the verification engine. Callers
// discriminate with errors.Is; the HTTP layer decides user messaging.
var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound is returned when an operation requires a pre-existing
	// user account (the passwordless flow does not create users).
	ErrUserNotFound = errors.New("user not found")

	// ErrCredentialNotFound is returned when no active credential matches
	// the supplied email/token pair.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExpired is returned when a credential is presented more
	// than CodeTTL after issuance. The credential row is deleted.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrAttemptsExhausted is returned once MaxCodeAttempts failed guesses
	// have been recorded. The credential row is deleted.
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")

	// ErrInvalidCode is returned for a wrong code while the credential is
	// still live; the failed attempt has been recorded.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrStateMismatch is returned when an OAuth callback's state does not
	// match the nonce issued for the handshake. This is treated as a
	// security event and always aborts before token exchange.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrNoEmailAvailable is returned when a provider's profile and email
	// listing expose no address at all.
	ErrNoEmailAvailable = oa2.ErrNoEmailAvailable
)
