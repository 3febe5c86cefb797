package authkit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	ak "github.com/smartdash/authkit"
)

func TestExtractUser(t *testing.T) {
	env := setupEnv(t)
	bearer, err := env.Sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mw := &ak.Middleware{Sessions: env.Sessions}
	var gotUser string
	handler := mw.ExtractUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = mw.GetLoggedInUserID(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if gotUser != "user-1" {
		t.Errorf("Expected user-1, got %q", gotUser)
	}

	// Anonymous requests pass through with no user.
	gotUser = "sentinel"
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if gotUser != "" {
		t.Errorf("Expected empty user id for anonymous request, got %q", gotUser)
	}
}

func TestEnsureUserRejectsAnonymous(t *testing.T) {
	env := setupEnv(t)
	mw := &ak.Middleware{Sessions: env.Sessions}

	handler := mw.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for anonymous request")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestEnsureUserRedirectsToLogin(t *testing.T) {
	env := setupEnv(t)
	mw := &ak.Middleware{Sessions: env.Sessions, LoginURL: "/login"}

	rec := httptest.NewRecorder()
	mw.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest("GET", "/private", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("Expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}
}

func TestMiddlewareCookieFallback(t *testing.T) {
	env := setupEnv(t)
	bearer, err := env.Sessions.Issue(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mw := &ak.Middleware{Sessions: env.Sessions, AuthTokenCookieName: "SDAuthToken"}
	var gotUser string
	handler := mw.ExtractUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = mw.GetLoggedInUserID(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "SDAuthToken", Value: bearer})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if gotUser != "user-2" {
		t.Errorf("Expected user-2 via cookie, got %q", gotUser)
	}
}
