// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"net/http"
	"strings"

	"github.com/campuskit/campus/pkg/auth"
	"github.com/campuskit/campus/pkg/contextkeys"
	"github.com/campuskit/campus/pkg/httputil"
)

// AuthMiddleware provides bearer-token authentication
type AuthMiddleware struct {
	tokenManager *auth.TokenManager
	optional     bool // if true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenManager *auth.TokenManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokenManager: tokenManager,
		optional:     optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.tokenManager.ValidateToken(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the authenticated context from a request.
// Returns nil when the request is unauthenticated.
func GetAuthContext(r *http.Request) *auth.Context {
	val := r.Context().Value(contextkeys.AuthKey)
	if val == nil {
		return nil
	}
	authCtx, ok := val.(*auth.Context)
	if !ok {
		return nil
	}
	return authCtx
}
