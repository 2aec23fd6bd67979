package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

// NewJWTAuth returns an HS256 verifier for secret.
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// Authenticator requires a verified JWT (see jwtauth.Verifier) whose "sub"
// claim is the caller's owner id.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeUnauthorized(w, r, "missing or invalid token")
			return
		}

		ownerID, err := uuid.Parse(token.Subject())
		if err != nil || ownerID == uuid.Nil {
			writeUnauthorized(w, r, "token subject is not a valid owner id")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
	})
}

// WithOwnerID stores the authenticated owner id in ctx.
func WithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerIDFromContext returns the owner id set by Authenticator.
func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	ownerID, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	return ownerID, ok
}

// SharedTokenMiddleware requires "Authorization: Bearer <token>". An empty
// token disables the check.
func SharedTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeUnauthorized(w, r, "invalid notification token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
