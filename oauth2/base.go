// Package oauth2 implements the provider-facing half of federated login:
// building consent-screen URLs and exchanging authorization codes for
// identity claims. Two provider shapes are supported behind one interface,
// a plain authorization-code grant (GitHub) and an authorization-code grant
// with PKCE (Google).
//
// CSRF state and PKCE verifier validation are the caller's responsibility:
// a callback whose state does not match the issued nonce must never reach
// Exchange.
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// UserClaims are the identity facts extracted from a provider profile.
type UserClaims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// ErrNoEmailAvailable is returned when neither the profile nor the email
// listing endpoint yields an address.
var ErrNoEmailAvailable = errors.New("no email address available from provider")

// ExchangeError reports a failed token exchange or profile fetch.
type ExchangeError struct {
	Provider string
	Endpoint string
	Status   int
	Err      error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: %s returned status %d", e.Provider, e.Endpoint, e.Status)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Provider is the capability interface both federation strategies satisfy.
type Provider interface {
	// Name identifies the provider ("google", "github").
	Name() string

	// UsesPKCE reports whether a code verifier must be threaded through
	// the handshake.
	UsesPKCE() bool

	// AuthCodeURL builds the consent-screen URL embedding the CSRF state
	// and, for PKCE providers, the challenge derived from verifier.
	// Non-PKCE providers ignore verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange swaps the authorization code for identity claims. PKCE
	// providers require the verifier that produced the challenge.
	Exchange(ctx context.Context, code, verifier string) (*UserClaims, error)
}

// BaseProvider holds the pieces shared by both strategies: the oauth2
// configuration plus endpoint and client injection points for tests.
type BaseProvider struct {
	ProviderName string
	Config       oauth2.Config

	// UserInfoURL is the profile endpoint. Defaults per provider; can be
	// overridden for testing.
	UserInfoURL string

	// HTTPClient, when set, is used for token exchange and profile calls.
	HTTPClient *http.Client
}

func (b *BaseProvider) Name() string { return b.ProviderName }

// exchangeContext threads the injectable client into the oauth2 library.
func (b *BaseProvider) exchangeContext(ctx context.Context) context.Context {
	if b.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return ctx
}

func (b *BaseProvider) httpClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}

// fetchJSON GETs an authenticated provider endpoint and decodes the body.
func (b *BaseProvider) fetchJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &ExchangeError{Provider: b.ProviderName, Endpoint: url, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient().Do(req)
	if err != nil {
		return &ExchangeError{Provider: b.ProviderName, Endpoint: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ExchangeError{Provider: b.ProviderName, Endpoint: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ExchangeError{Provider: b.ProviderName, Endpoint: url, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ExchangeError{Provider: b.ProviderName, Endpoint: url, Err: err}
	}
	return nil
}
