// Command authkitd runs a standalone auth server backed by the filesystem
// stores: passwordless email sign-in plus Google and GitHub federation.
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"

	"github.com/smartdash/authkit"
	"github.com/smartdash/authkit/oauth2"
	"github.com/smartdash/authkit/stores"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg, err := authkit.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	users := stores.NewFSUserStore(cfg.StoragePath)
	tokens := stores.NewFSAuthTokenStore(cfg.StoragePath)
	sessions := &authkit.SessionManager{Store: stores.NewFSSessionStore(cfg.StoragePath)}

	verifier := &authkit.Verifier{Users: users, Tokens: tokens}
	resolver := &authkit.IdentityResolver{Users: users}

	var sender authkit.EmailSender
	if cfg.ResendAPIKey != "" {
		sender = &authkit.ResendEmailSender{
			APIKey:      cfg.ResendAPIKey,
			From:        cfg.EmailFrom,
			AppName:     cfg.AppName,
			LinkBaseURL: cfg.BaseURL,
		}
	} else {
		slog.Warn("RESEND_API_KEY not set, logging sign-in emails to console")
		sender = &authkit.ConsoleEmailSender{LinkBaseURL: cfg.BaseURL}
	}

	auth := authkit.NewAuth(verifier, resolver, sessions, sender).
		AddProvider(oauth2.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)).
		AddProvider(oauth2.NewGithubProvider(cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubCallbackURL))
	auth.Limiter = authkit.NewKeyedLimiter(cfg.StartRatePerMinute)

	mux := http.NewServeMux()
	mux.Handle("/auth/", http.StripPrefix("/auth", auth.Handler()))

	slog.Info("listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}
