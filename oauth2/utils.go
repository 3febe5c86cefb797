package oauth2

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// GenerateState mints the CSRF nonce echoed through the provider redirect.
func GenerateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// GenerateVerifier mints a PKCE code verifier per RFC 7636.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}
