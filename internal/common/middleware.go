package common

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type identityKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Handle string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// HTTPAuth rejects requests without a valid bearer token, except for the
// listed public paths.
func HTTPAuth(issuer *TokenIssuer, publicPaths ...string) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, http.StatusUnauthorized, "authorization required")
				return
			}
			claims, err := issuer.ValidToken(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Handle: claims.Handle})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

// StreamAuthInterceptor validates the bearer token carried in stream metadata
// and injects the caller identity into the stream context.
func StreamAuthInterceptor(issuer *TokenIssuer) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		md, ok := metadata.FromIncomingContext(ss.Context())
		if !ok {
			return status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md["authorization"]
		if len(vals) == 0 {
			return status.Error(codes.Unauthenticated, "authorization required")
		}
		token, ok := bearerToken(vals[0])
		if !ok {
			return status.Error(codes.Unauthenticated, "invalid auth header")
		}
		claims, err := issuer.ValidToken(token)
		if err != nil {
			return status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		ctx := WithIdentity(ss.Context(), Identity{UserID: claims.UserID, Handle: claims.Handle})
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}
