package authkit

import (
	"context"
	"fmt"
	"log/slog"
)

// IdentityClaims are the verified facts a provider hands back after a
// successful code exchange. Email is required; name and avatar are
// refreshed on every login.
type IdentityClaims struct {
	Email     string
	Name      string
	AvatarURL string
}

// IdentityResolver maps verified provider claims to a durable user row.
// Both OAuth providers resolve through it identically; the passwordless
// flow never does (it requires the user to pre-exist).
type IdentityResolver struct {
	Users UserStore
}

// Resolve upserts by email: a new user is inserted if none exists,
// otherwise name and avatar are overwritten with the freshly supplied
// values (last write wins, no merging of empty fields). The user id is
// stable across calls for the same email.
func (r *IdentityResolver) Resolve(ctx context.Context, claims *IdentityClaims) (*User, error) {
	if claims == nil || claims.Email == "" {
		return nil, ErrNoEmailAvailable
	}

	user, err := r.Users.UpsertUserByEmail(ctx, &User{
		ID:        NewID(), // used only when the row is inserted
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity for %s: %w", claims.Email, err)
	}

	slog.Info("resolved identity", "email", user.Email, "user_id", user.ID)
	return user, nil
}
