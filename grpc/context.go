// Package grpc carries bearer-session authentication across gRPC
// boundaries: interceptors resolve the authorization metadata to a user id
// and expose it on the request context.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

type userIDKey struct{}

// MetadataKeyAuthorization is the gRPC metadata key the bearer token is
// read from, mirroring the HTTP Authorization header.
const MetadataKeyAuthorization = "authorization"

// UserIDFromContext returns the authenticated user id placed on the
// context by the interceptors, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID returns a context carrying an authenticated user id.
// Exposed for tests and for servers that authenticate out of band.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// BearerFromContext extracts the bearer token from incoming gRPC metadata,
// or "" when the authorization entry is missing or not a Bearer scheme.
func BearerFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(MetadataKeyAuthorization) {
		const prefix = "Bearer "
		if strings.HasPrefix(v, prefix) {
			return strings.TrimSpace(v[len(prefix):])
		}
	}
	return ""
}
