// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/angelamos/consultancy-api/internal/core"
)

const (
	IdentityIDKey contextKey = "identity_id"
	RoleKey       contextKey = "identity_role"
	ClaimsKey     contextKey = "session_claims"
)

const RoleAdmin = "admin"

type TokenVerifier interface {
	VerifySession(ctx context.Context, token string) (*SessionClaims, error)
	CookieName() string
}

// SessionClaims is the immutable identity snapshot carried by a session token.
type SessionClaims struct {
	IdentityID string `json:"identity_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

func (c *SessionClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, verifier.CookieName())

			if token == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("missing session"),
				)
				return
			}

			claims, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, verifier.CookieName())

			if token != "" {
				claims, err := verifier.VerifySession(r.Context(), token)
				if err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole answers 401 for both a missing session and a wrong role so
// callers learn nothing about the guarded resource.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())

			if userRole == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			if _, ok := roleSet[userRole]; !ok {
				core.JSONError(
					w,
					core.UnauthorizedError("insufficient permissions"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}

// ExtractToken prefers a Bearer Authorization header. Any other scheme,
// such as Basic added by a proxy, falls through to the session cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	if cookieName == "" {
		return ""
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func WithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, IdentityIDKey, claims.IdentityID)
	ctx = context.WithValue(ctx, RoleKey, claims.Role)
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return ctx
}

func GetIdentityID(ctx context.Context) string {
	if id, ok := ctx.Value(IdentityIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

func GetClaims(ctx context.Context) *SessionClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*SessionClaims); ok {
		return claims
	}
	return nil
}

func IsAuthenticated(ctx context.Context) bool {
	return GetIdentityID(ctx) != ""
}

func IsAdmin(ctx context.Context) bool {
	return GetRole(ctx) == RoleAdmin
}
