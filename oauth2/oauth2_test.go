package oauth2_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	xoauth2 "golang.org/x/oauth2"

	"github.com/smartdash/authkit/oauth2"
)

// mockProvider is a scripted stand-in for a provider's token and profile
// endpoints.
type mockProvider struct {
	Server *httptest.Server

	// Profile is returned from the userinfo endpoint.
	Profile map[string]any

	// Emails is returned from the email-listing endpoint.
	Emails []map[string]any

	// TokenStatus, when non-zero, overrides the token endpoint response.
	TokenStatus int

	// ProfileStatus, when non-zero, overrides the userinfo response.
	ProfileStatus int

	// LastTokenForm captures the form the token exchange posted.
	LastTokenForm url.Values
}

func newMockProvider(t *testing.T) *mockProvider {
	t.Helper()
	m := &mockProvider{}
	handler := http.NewServeMux()
	handler.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.LastTokenForm = r.Form
		if m.TokenStatus != 0 {
			http.Error(w, "token error", m.TokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock-access-token",
			"token_type":   "bearer",
		})
	})
	handler.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer mock-access-token" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		if m.ProfileStatus != 0 {
			http.Error(w, "profile error", m.ProfileStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Profile)
	})
	handler.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Emails)
	})

	m.Server = httptest.NewServer(handler)
	t.Cleanup(m.Server.Close)
	return m
}

func (m *mockProvider) endpoint() xoauth2.Endpoint {
	return xoauth2.Endpoint{
		AuthURL:  m.Server.URL + "/auth",
		TokenURL: m.Server.URL + "/token",
	}
}

func newTestGoogle(m *mockProvider) *oauth2.GoogleProvider {
	p := oauth2.NewGoogleProvider("client-id", "client-secret", "http://localhost/callback")
	p.Config.Endpoint = m.endpoint()
	p.UserInfoURL = m.Server.URL + "/userinfo"
	return p
}

func newTestGithub(m *mockProvider) *oauth2.GithubProvider {
	p := oauth2.NewGithubProvider("client-id", "client-secret", "http://localhost/callback")
	p.Config.Endpoint = m.endpoint()
	p.UserInfoURL = m.Server.URL + "/userinfo"
	p.EmailsURL = m.Server.URL + "/emails"
	return p
}

func TestGoogleAuthCodeURLCarriesChallenge(t *testing.T) {
	p := newTestGoogle(newMockProvider(t))
	verifier := oauth2.GenerateVerifier()

	raw := p.AuthCodeURL("csrf-state", verifier)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "csrf-state" {
		t.Errorf("Expected state in URL, got %q", q.Get("state"))
	}
	if q.Get("code_challenge") == "" {
		t.Error("Expected a PKCE code_challenge")
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("Expected S256 challenge method, got %q", q.Get("code_challenge_method"))
	}
	// The raw verifier itself must never appear on the consent URL.
	if strings.Contains(raw, verifier) {
		t.Error("Verifier leaked into the consent URL")
	}
}

func TestGithubAuthCodeURLHasNoChallenge(t *testing.T) {
	p := newTestGithub(newMockProvider(t))

	u, err := url.Parse(p.AuthCodeURL("csrf-state", ""))
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "csrf-state" {
		t.Errorf("Expected state in URL, got %q", q.Get("state"))
	}
	if q.Get("code_challenge") != "" {
		t.Error("Plain-grant provider must not carry a PKCE challenge")
	}
}

func TestGoogleExchange(t *testing.T) {
	m := newMockProvider(t)
	m.Profile = map[string]any{
		"email":   "user@gmail.com",
		"name":    "G User",
		"picture": "https://img.example.com/p.png",
	}
	p := newTestGoogle(m)
	verifier := oauth2.GenerateVerifier()

	claims, err := p.Exchange(context.Background(), "auth-code", verifier)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if claims.Email != "user@gmail.com" || claims.Name != "G User" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
	if claims.AvatarURL != "https://img.example.com/p.png" {
		t.Errorf("Expected picture mapped to avatar, got %q", claims.AvatarURL)
	}
	// The verifier must travel with the token request.
	if got := m.LastTokenForm.Get("code_verifier"); got != verifier {
		t.Errorf("Expected code_verifier %q in token request, got %q", verifier, got)
	}
}

func TestGoogleExchangeNoEmail(t *testing.T) {
	m := newMockProvider(t)
	m.Profile = map[string]any{"name": "No Email"}
	p := newTestGoogle(m)

	_, err := p.Exchange(context.Background(), "auth-code", oauth2.GenerateVerifier())
	if !errors.Is(err, oauth2.ErrNoEmailAvailable) {
		t.Errorf("Expected ErrNoEmailAvailable, got %v", err)
	}
}

func TestGoogleExchangeTokenFailure(t *testing.T) {
	m := newMockProvider(t)
	m.TokenStatus = http.StatusBadRequest
	p := newTestGoogle(m)

	_, err := p.Exchange(context.Background(), "bad-code", oauth2.GenerateVerifier())
	var xerr *oauth2.ExchangeError
	if !errors.As(err, &xerr) {
		t.Fatalf("Expected ExchangeError, got %v", err)
	}
	if xerr.Provider != "google" || xerr.Endpoint != "token" {
		t.Errorf("Unexpected error detail: %+v", xerr)
	}
}

func TestGithubExchangeProfileEmail(t *testing.T) {
	m := newMockProvider(t)
	m.Profile = map[string]any{
		"email":      "dev@x.com",
		"name":       "Dev",
		"login":      "devlogin",
		"avatar_url": "https://avatars.example.com/1",
	}
	p := newTestGithub(m)

	claims, err := p.Exchange(context.Background(), "auth-code", "")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if claims.Email != "dev@x.com" || claims.Name != "Dev" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
	if m.LastTokenForm.Get("code_verifier") != "" {
		t.Error("Plain grant must not send a code_verifier")
	}
}

func TestGithubNameFallsBackToLogin(t *testing.T) {
	m := newMockProvider(t)
	m.Profile = map[string]any{"email": "dev@x.com", "login": "devlogin"}
	p := newTestGithub(m)

	claims, err := p.Exchange(context.Background(), "auth-code", "")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if claims.Name != "devlogin" {
		t.Errorf("Expected login as name fallback, got %q", claims.Name)
	}
}

func TestGithubEmailListingFallback(t *testing.T) {
	cases := []struct {
		name   string
		emails []map[string]any
		want   string
	}{
		{
			name: "primary verified wins",
			emails: []map[string]any{
				{"email": "old@x.com", "primary": false, "verified": true},
				{"email": "main@x.com", "primary": true, "verified": true},
			},
			want: "main@x.com",
		},
		{
			name: "any verified beats unverified primary",
			emails: []map[string]any{
				{"email": "unv@x.com", "primary": true, "verified": false},
				{"email": "ver@x.com", "primary": false, "verified": true},
			},
			want: "ver@x.com",
		},
		{
			name: "first listed as last resort",
			emails: []map[string]any{
				{"email": "first@x.com", "primary": false, "verified": false},
				{"email": "second@x.com", "primary": false, "verified": false},
			},
			want: "first@x.com",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMockProvider(t)
			m.Profile = map[string]any{"login": "devlogin"} // no public email
			m.Emails = tc.emails
			p := newTestGithub(m)

			claims, err := p.Exchange(context.Background(), "auth-code", "")
			if err != nil {
				t.Fatalf("Exchange failed: %v", err)
			}
			if claims.Email != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, claims.Email)
			}
		})
	}
}

func TestGithubNoEmailAnywhere(t *testing.T) {
	m := newMockProvider(t)
	m.Profile = map[string]any{"login": "devlogin"}
	m.Emails = []map[string]any{}
	p := newTestGithub(m)

	_, err := p.Exchange(context.Background(), "auth-code", "")
	if !errors.Is(err, oauth2.ErrNoEmailAvailable) {
		t.Errorf("Expected ErrNoEmailAvailable, got %v", err)
	}
}

func TestGithubProfileFetchFailure(t *testing.T) {
	m := newMockProvider(t)
	m.ProfileStatus = http.StatusInternalServerError
	p := newTestGithub(m)

	_, err := p.Exchange(context.Background(), "auth-code", "")
	var xerr *oauth2.ExchangeError
	if !errors.As(err, &xerr) {
		t.Fatalf("Expected ExchangeError, got %v", err)
	}
	if xerr.Status != http.StatusInternalServerError {
		t.Errorf("Expected status 500 recorded, got %d", xerr.Status)
	}
}

func TestGenerateState(t *testing.T) {
	a := oauth2.GenerateState()
	b := oauth2.GenerateState()
	if a == "" || a == b {
		t.Errorf("Expected distinct non-empty states, got %q and %q", a, b)
	}
}
