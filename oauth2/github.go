package oauth2

import (
	"context"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubUserInfoURL = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// GithubProvider implements the plain authorization-code variant. GitHub
// may keep the profile email private, in which case the /user/emails
// listing is consulted: the primary verified address wins, then any
// verified address, then the first listed one.
type GithubProvider struct {
	BaseProvider

	// EmailsURL is the email-listing fallback endpoint. Overridable for
	// testing.
	EmailsURL string
}

func NewGithubProvider(clientID, clientSecret, callbackURL string) *GithubProvider {
	if clientID == "" {
		clientID = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackURL == "" {
		callbackURL = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	return &GithubProvider{
		EmailsURL: githubEmailsURL,
		BaseProvider: BaseProvider{
			ProviderName: "github",
			UserInfoURL:  githubUserInfoURL,
			Config: oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  callbackURL,
				Scopes:       []string{"user:email"},
				Endpoint:     github.Endpoint,
			},
		},
	}
}

func (g *GithubProvider) UsesPKCE() bool { return false }

func (g *GithubProvider) AuthCodeURL(state, _ string) string {
	return g.Config.AuthCodeURL(state)
}

func (g *GithubProvider) Exchange(ctx context.Context, code, _ string) (*UserClaims, error) {
	token, err := g.Config.Exchange(g.exchangeContext(ctx), code)
	if err != nil {
		return nil, &ExchangeError{Provider: g.ProviderName, Endpoint: "token", Err: err}
	}

	var profile struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.fetchJSON(ctx, g.UserInfoURL, token.AccessToken, &profile); err != nil {
		return nil, err
	}

	email := profile.Email
	if email == "" {
		email, err = g.lookupEmail(ctx, token.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	return &UserClaims{
		Email:     email,
		Name:      name,
		AvatarURL: profile.AvatarURL,
	}, nil
}

// lookupEmail selects an address from the /user/emails listing.
func (g *GithubProvider) lookupEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.fetchJSON(ctx, g.EmailsURL, accessToken, &emails); err != nil {
		return "", err
	}
	if len(emails) == 0 {
		return "", ErrNoEmailAvailable
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return emails[0].Email, nil
}
