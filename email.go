package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
)

// EmailSender delivers the (code, token) pair to the user. A delivery
// failure never rolls back credential issuance: the credential stays valid
// and the user may obtain it another way.
type EmailSender interface {
	SendSignInEmail(ctx context.Context, to string, cred *Credential) error
}

// ConsoleEmailSender is a development implementation that logs emails to
// the console.
type ConsoleEmailSender struct {
	// LinkBaseURL is the public base used to build the magic link.
	LinkBaseURL string
}

func (c *ConsoleEmailSender) SendSignInEmail(ctx context.Context, to string, cred *Credential) error {
	log.Printf("\n=== EMAIL: Sign In ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Sign in to your account")
	log.Printf("Code: %s", cred.Code)
	log.Printf("Link: %s", MagicLink(c.LinkBaseURL, to, cred.Token))
	log.Printf("======================\n")
	return nil
}

// MagicLink builds the verification URL carried by sign-in emails.
func MagicLink(baseURL, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return fmt.Sprintf("%s/login/verify-magic-link?%s", baseURL, q.Encode())
}

// ResendEmailSender delivers sign-in emails through the Resend HTTP API.
type ResendEmailSender struct {
	APIKey      string
	From        string
	AppName     string
	LinkBaseURL string

	// APIURL defaults to the public Resend endpoint. Overridable in tests.
	APIURL string

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

const resendAPIURL = "https://api.resend.com/emails"

func (s *ResendEmailSender) apiURL() string {
	if s.APIURL != "" {
		return s.APIURL
	}
	return resendAPIURL
}

func (s *ResendEmailSender) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *ResendEmailSender) appName() string {
	if s.AppName != "" {
		return s.AppName
	}
	return "SmartDash"
}

// SendSignInEmail posts a sign-in email carrying both the 6-digit code and
// the magic link.
func (s *ResendEmailSender) SendSignInEmail(ctx context.Context, to string, cred *Credential) error {
	link := MagicLink(s.LinkBaseURL, to, cred.Token)
	payload := map[string]any{
		"from":    s.From,
		"to":      to,
		"subject": fmt.Sprintf("Sign in to %s", s.appName()),
		"html":    signInEmailBody(s.appName(), cred.Code, link),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email to %s: status %d", to, resp.StatusCode)
	}
	return nil
}

func signInEmailBody(appName, code, link string) string {
	return fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">
  <h1>Sign in to %s</h1>
  <p>Use the magic link or enter the code below.</p>
  <p><a href="%s">Instant Sign In</a></p>
  <p>Or enter this 6-digit code in the app:</p>
  <p style="font-family:Courier,monospace;font-size:32px;letter-spacing:8px"><b>%s %s</b></p>
  <p>For security reasons, this code and link expire in 15 minutes.</p>
  <p>If you didn't request this sign in, you can safely ignore this email.</p>
</div>`, appName, link, code[:3], code[3:])
}
