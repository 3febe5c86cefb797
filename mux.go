package authkit

import (
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	oa2 "github.com/smartdash/authkit/oauth2"
)

// Auth is the HTTP surface tying the verification engine, the federation
// adapters, the identity resolver and the session manager together. The
// scs session manager holds the transient OAuth handshake state (CSRF
// nonce, PKCE verifier) in its cookie-backed store for the few minutes the
// handshake lives.
type Auth struct {
	Verifier *Verifier
	Resolver *IdentityResolver
	Sessions *SessionManager
	Sender   EmailSender

	// Session is the cookie-backed transient store for handshake state.
	Session *scs.SessionManager

	// Limiter, when set, gates credential requests per client+email.
	Limiter RateLimiter

	// AuthFailureURL is where failed OAuth callbacks redirect. Defaults
	// to "/auth/error".
	AuthFailureURL string

	providers map[string]oa2.Provider
	router    *mux.Router
}

// NewAuth wires the auth surface. Providers are registered with
// AddProvider before calling Handler.
func NewAuth(verifier *Verifier, resolver *IdentityResolver, sessions *SessionManager, sender EmailSender) *Auth {
	return &Auth{
		Verifier:  verifier,
		Resolver:  resolver,
		Sessions:  sessions,
		Sender:    sender,
		Session:   scs.New(),
		providers: make(map[string]oa2.Provider),
	}
}

// AddProvider registers a federation strategy under its name.
func (a *Auth) AddProvider(p oa2.Provider) *Auth {
	a.providers[p.Name()] = p
	return a
}

func (a *Auth) failureURL() string {
	if a.AuthFailureURL != "" {
		return a.AuthFailureURL
	}
	return "/auth/error"
}

// Handler returns the routed auth surface, wrapped in the scs load/save
// middleware so handshake state survives the provider round trip.
func (a *Auth) Handler() http.Handler {
	if a.router == nil {
		r := mux.NewRouter()
		r.HandleFunc("/email/start", a.handleEmailStart).Methods(http.MethodPost)
		r.HandleFunc("/email/verify-code", a.handleVerifyCode).Methods(http.MethodPost)
		r.HandleFunc("/email/verify-link", a.handleVerifyLink).Methods(http.MethodGet)
		r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodPost)
		r.HandleFunc("/me", a.handleMe).Methods(http.MethodGet)
		r.HandleFunc("/{provider}", a.handleOAuthStart).Methods(http.MethodGet)
		r.HandleFunc("/{provider}/callback", a.handleOAuthCallback).Methods(http.MethodGet)
		a.router = r
	}
	return a.Session.LoadAndSave(a.router)
}

// handleEmailStart issues a one-time credential and emails it. Delivery
// failure is logged, not fatal: the credential stays valid either way.
func (a *Auth) handleEmailStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email required"})
		return
	}

	if a.Limiter != nil && !a.Limiter.Allow(clientIP(r)+":"+req.Email) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many requests"})
		return
	}

	cred, err := a.Verifier.RequestCredential(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "user not found"})
			return
		}
		slog.Error("failed to issue credential", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	if err := a.Sender.SendSignInEmail(r.Context(), req.Email, cred); err != nil {
		// The user may still obtain the credential out of band.
		slog.Error("failed to deliver sign-in email", "email", req.Email, "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *Auth) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email and code required"})
		return
	}

	grant, err := a.Verifier.VerifyCode(r.Context(), req.Email, req.Code)
	a.finishVerification(w, r, grant, err)
}

func (a *Auth) handleVerifyLink(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if email == "" || token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email and token required"})
		return
	}

	grant, err := a.Verifier.VerifyToken(r.Context(), email, token)
	a.finishVerification(w, r, grant, err)
}

// finishVerification converts a verification outcome into a session or a
// uniform negative response. Lifecycle failures are never surfaced with
// their specific reason; the caller decides user messaging.
func (a *Auth) finishVerification(w http.ResponseWriter, r *http.Request, grant *Grant, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrCredentialNotFound),
			errors.Is(err, ErrCredentialExpired),
			errors.Is(err, ErrAttemptsExhausted),
			errors.Is(err, ErrInvalidCode),
			errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "verification failed"})
		default:
			slog.Error("verification error", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}

	bearer, err := a.Sessions.Issue(r.Context(), grant.UserID)
	if err != nil {
		slog.Error("failed to issue session", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	a.Session.Put(r.Context(), "loggedInUserId", grant.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"session": bearer, "user_id": grant.UserID})
}

// handleOAuthStart mints the handshake state (and a PKCE verifier where
// the provider needs one), parks them in the cookie session, and redirects
// to the provider's consent screen.
func (a *Auth) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := a.providers[mux.Vars(r)["provider"]]
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := oa2.GenerateState()
	a.Session.Put(r.Context(), stateKey(provider.Name()), state)

	verifier := ""
	if provider.UsesPKCE() {
		verifier = oa2.GenerateVerifier()
		a.Session.Put(r.Context(), verifierKey(provider.Name()), verifier)
	}

	http.Redirect(w, r, provider.AuthCodeURL(state, verifier), http.StatusFound)
}

// handleOAuthCallback validates the echoed state against the parked nonce
// before anything else. A mismatch is a security event: the flow aborts
// and the authorization code is never exchanged.
func (a *Auth) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := a.providers[mux.Vars(r)["provider"]]
	if !ok {
		http.NotFound(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	storedState := a.Session.PopString(r.Context(), stateKey(provider.Name()))
	verifier := a.Session.PopString(r.Context(), verifierKey(provider.Name()))

	if code == "" || state == "" || storedState == "" || state != storedState {
		slog.Warn("oauth state mismatch", "provider", provider.Name())
		a.failAuth(w, r, ErrStateMismatch)
		return
	}
	if provider.UsesPKCE() && verifier == "" {
		slog.Warn("missing pkce verifier", "provider", provider.Name())
		a.failAuth(w, r, ErrStateMismatch)
		return
	}

	claims, err := provider.Exchange(r.Context(), code, verifier)
	if err != nil {
		slog.Warn("oauth exchange failed", "provider", provider.Name(), "err", err)
		a.failAuth(w, r, err)
		return
	}

	user, err := a.Resolver.Resolve(r.Context(), &IdentityClaims{
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
	})
	if err != nil {
		slog.Error("failed to resolve identity", "provider", provider.Name(), "err", err)
		a.failAuth(w, r, err)
		return
	}

	bearer, err := a.Sessions.Issue(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to issue session", "err", err)
		a.failAuth(w, r, err)
		return
	}

	a.Session.Put(r.Context(), "loggedInUserId", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"session": bearer, "user_id": user.ID})
}

// failAuth surfaces every OAuth failure the same way. Provider errors are
// never retried automatically and no partial session is ever issued.
func (a *Auth) failAuth(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrStateMismatch) {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, a.failureURL(), http.StatusTemporaryRedirect)
}

func (a *Auth) handleLogout(w http.ResponseWriter, r *http.Request) {
	log.Println("Logging out user...")
	if err := a.Sessions.Revoke(r.Context(), BearerFromRequest(r)); err != nil {
		slog.Error("failed to revoke session", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	_ = a.Session.Clear(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *Auth) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := a.Sessions.Resolve(r.Context(), BearerFromRequest(r))
	if err != nil {
		slog.Error("failed to resolve session", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "not signed in"})
		return
	}

	user, err := a.Resolver.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "not signed in"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func stateKey(provider string) string    { return "oauth_state_" + provider }
func verifierKey(provider string) string { return "oauth_verifier_" + provider }

func decodeBody(r *http.Request, out any) error {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return err
		}
		// Only the small start/verify payloads arrive as forms.
		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.FormValue(k)
		}
		data, err := json.Marshal(form)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

// clientIP extracts the caller's address for rate-limit keying.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
