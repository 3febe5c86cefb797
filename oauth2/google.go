package oauth2

import (
	"context"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider implements the PKCE-requiring variant of the handshake.
// The authorization URL carries an S256 challenge derived from the caller's
// verifier, and Exchange must receive the same verifier back.
type GoogleProvider struct {
	BaseProvider
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	return &GoogleProvider{
		BaseProvider: BaseProvider{
			ProviderName: "google",
			UserInfoURL:  googleUserInfoURL,
			Config: oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  callbackURL,
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/userinfo.profile",
				},
				Endpoint: google.Endpoint,
			},
		},
	}
}

func (g *GoogleProvider) UsesPKCE() bool { return true }

func (g *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return g.Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (g *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*UserClaims, error) {
	token, err := g.Config.Exchange(g.exchangeContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &ExchangeError{Provider: g.ProviderName, Endpoint: "token", Err: err}
	}

	var profile struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := g.fetchJSON(ctx, g.UserInfoURL, token.AccessToken, &profile); err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, ErrNoEmailAvailable
	}

	return &UserClaims{
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.Picture,
	}, nil
}
