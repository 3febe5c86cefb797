// Package authkit is the identity and session core behind passwordless and
// federated sign-in. A user authenticates either with a one-time 6-digit
// code plus magic-link token delivered by email, or by federating to an
// external OAuth provider; both branches converge on a single
// session-issuing authority.
//
// # Architecture
//
// Verifier: owns the one-time-credential lifecycle. Issuing a credential
// invalidates any prior one for the same email; credentials expire 15
// minutes after issuance; code verification tolerates five wrong guesses
// before destroying the credential; every successful verification consumes
// the credential.
//
// oauth2.Provider: two federation strategies behind one interface, a plain
// authorization-code grant (GitHub) and an authorization-code grant with
// PKCE (Google). The GitHub strategy falls back to the email-listing
// endpoint when the profile hides the address.
//
// IdentityResolver: maps verified claims from either provider onto a
// durable user row by upsert-by-email. Name and avatar are refreshed on
// every login.
//
// SessionManager: issues opaque bearer sessions. The token is a pure
// lookup key, never a signed credential; logout is a single row delete.
//
// # Basic Usage
//
// Pick a storage backend and wire the pieces:
//
//	users := stores.NewFSUserStore(path)
//	tokens := stores.NewFSAuthTokenStore(path)
//	sessions := &authkit.SessionManager{Store: stores.NewFSSessionStore(path)}
//
//	verifier := &authkit.Verifier{Users: users, Tokens: tokens}
//	resolver := &authkit.IdentityResolver{Users: users}
//
//	auth := authkit.NewAuth(verifier, resolver, sessions, &authkit.ConsoleEmailSender{}).
//		AddProvider(oauth2.NewGoogleProvider("", "", "")).
//		AddProvider(oauth2.NewGithubProvider("", "", ""))
//
//	http.Handle("/auth/", http.StripPrefix("/auth", auth.Handler()))
//
// # Store Implementations
//
// File-backed stores in the stores package suit development and small
// deployments. stores/gorm, stores/redis and stores/gae back the same
// interfaces with relational, Redis and Cloud Datastore storage; each
// provides the atomic attempts increment and conditional consume the
// verification engine relies on.
//
// # Security
//
// Codes are six uniformly random digits; magic-link tokens and session
// bearers are 32 random bytes, hex encoded. OAuth callbacks are validated
// against the CSRF state nonce (and PKCE verifier where applicable) before
// any token exchange; a mismatch aborts the flow outright.
package authkit
