package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SessionResolver maps a bearer token to the owning user id. An unknown
// token resolves to "" with a nil error; only infrastructure failures
// return an error. *authkit.SessionManager.Resolve satisfies this.
type SessionResolver func(ctx context.Context, bearer string) (string, error)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Resolve turns bearer tokens into user ids. Required.
	Resolve SessionResolver

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but UserIDFromContext returns "".
	RequireAuth bool

	// PublicMethods are full method names ("/pkg.Service/Method") that
	// skip the auth requirement. Only consulted when RequireAuth is true.
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth everywhere
// except the listed methods.
func NewInterceptorConfig(resolve SessionResolver, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Resolve:       resolve,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

func (c *InterceptorConfig) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	userID := ""
	if bearer := BearerFromContext(ctx); bearer != "" && c.Resolve != nil {
		id, err := c.Resolve(ctx, bearer)
		if err != nil {
			return ctx, status.Error(codes.Internal, "failed to resolve session")
		}
		userID = id
	}

	if c.RequireAuth && !c.PublicMethods[fullMethod] && userID == "" {
		return ctx, status.Error(codes.Unauthenticated, "authentication required")
	}

	if userID != "" {
		ctx = ContextWithUserID(ctx, userID)
	}
	return ctx, nil
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// bearer session and enforces authentication where required.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns the stream-side equivalent of
// UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// wrappedStream overrides the stream context with the authenticated one.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }
