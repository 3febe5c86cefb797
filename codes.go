package authkit

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GenerateCode returns a 6-digit verification code, each digit drawn
// uniformly from 0-9. Leading zeros are preserved so the rendered code is
// always exactly six characters.
func GenerateCode() (string, error) {
	digits := make([]byte, 6)
	if _, err := rand.Read(digits); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	for i, b := range digits {
		// 256 % 10 != 0, so reduce from a uniform 0..249 range to avoid bias
		for b >= 250 {
			one := make([]byte, 1)
			if _, err := rand.Read(one); err != nil {
				return "", fmt.Errorf("failed to generate code: %w", err)
			}
			b = one[0]
		}
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}

// GenerateSecureToken generates a cryptographically secure random token,
// 32 bytes hex-encoded to 64 characters. Used for magic-link tokens and
// bearer session ids.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewID returns an opaque identifier for user and credential rows.
func NewID() string {
	return uuid.NewString()
}

// Credential is the (code, token) pair produced for one sign-in attempt.
// The code is typed by the user; the token rides in the magic link.
type Credential struct {
	Code  string
	Token string
}

// IssueCredential generates a fresh, unrelated (code, token) pair. Pure
// generation, no side effects.
func IssueCredential() (*Credential, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	token, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}
	return &Credential{Code: code, Token: token}, nil
}
