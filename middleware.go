package authkit

import (
	"context"
	"log/slog"
	"net/http"
)

type loggedInUserKey string

// Middleware resolves the bearer session on incoming requests and exposes
// the owning user id to downstream handlers.
type Middleware struct {
	// Sessions resolves bearer tokens to user ids.
	Sessions *SessionManager

	// AuthTokenCookieName, when set, is checked as a fallback transport
	// for the bearer token alongside the Authorization header.
	AuthTokenCookieName string

	// UserParamName is the request-context key the user id is stored
	// under. Defaults to "loggedInUserId".
	UserParamName string

	// LoginURL, when set, is where EnsureUser redirects anonymous
	// requests. Otherwise they get a 401.
	LoginURL string
}

func (m *Middleware) userParamName() string {
	if m.UserParamName != "" {
		return m.UserParamName
	}
	return "loggedInUserId"
}

// GetLoggedInUserID returns the user id resolved for this request, or ""
// if the request carries no valid session.
func (m *Middleware) GetLoggedInUserID(r *http.Request) string {
	if v, ok := r.Context().Value(loggedInUserKey(m.userParamName())).(string); ok && v != "" {
		return v
	}
	return m.resolveUser(r)
}

func (m *Middleware) resolveUser(r *http.Request) string {
	bearer := BearerFromRequest(r)
	if bearer == "" && m.AuthTokenCookieName != "" {
		if cookie, err := r.Cookie(m.AuthTokenCookieName); err == nil {
			bearer = cookie.Value
		}
	}
	if bearer == "" {
		return ""
	}

	userID, err := m.Sessions.Resolve(r.Context(), bearer)
	if err != nil {
		slog.Warn("failed to resolve session", "err", err)
		return ""
	}
	return userID
}

// ExtractUser loads the logged-in user id (if any) into the request context
// without enforcing that one exists.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.withUser(m.resolveUser(r), r))
	})
}

// EnsureUser behaves like ExtractUser but rejects anonymous requests,
// either with a redirect to LoginURL or a 401.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.resolveUser(r)
		if userID == "" {
			if m.LoginURL != "" {
				http.Redirect(w, r, m.LoginURL, http.StatusFound)
			} else {
				http.Error(w, "authentication required", http.StatusUnauthorized)
			}
			return
		}
		next.ServeHTTP(w, m.withUser(userID, r))
	})
}

func (m *Middleware) withUser(userID string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), loggedInUserKey(m.userParamName()), userID)
	return r.WithContext(ctx)
}
