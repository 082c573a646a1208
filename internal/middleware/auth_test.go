// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelamos/consultancy-api/internal/core"
)

type stubVerifier struct {
	claims map[string]*SessionClaims
	err    error
}

func (s *stubVerifier) VerifySession(
	_ context.Context,
	token string,
) (*SessionClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	claims, ok := s.claims[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	return claims, nil
}

func (s *stubVerifier) CookieName() string {
	return "session"
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{claims: map[string]*SessionClaims{
		"member-token": {IdentityID: "id-member", Role: "member", Email: "m@x.io"},
		"admin-token":  {IdentityID: "id-admin", Role: RoleAdmin, Email: "a@x.io"},
	}}
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Identity", GetIdentityID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "non bearer header", header: "Basic abc", want: ""},
		{name: "basic header falls back to cookie", header: "Basic dXNlcjpwYXNz", cookie: "xyz", want: "xyz"},
		{name: "empty bearer falls back to cookie", header: "Bearer ", cookie: "xyz", want: "xyz"},
		{name: "scheme only falls back to cookie", header: "Bearer", cookie: "xyz", want: "xyz"},
		{name: "cookie", cookie: "xyz", want: "xyz"},
		{name: "header wins", header: "Bearer abc", cookie: "xyz", want: "abc"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}

			assert.Equal(t, tt.want, ExtractToken(req, "session"))
		})
	}
}

func TestAuthenticator(t *testing.T) {
	handler := Authenticator(newStubVerifier())(echoIdentity())

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_INVALID")
	})

	t.Run("valid cookie behind basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		req.AddCookie(&http.Cookie{Name: "session", Value: "member-token"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "id-member", rec.Header().Get("X-Identity"))
	})

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: "member-token"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "id-member", rec.Header().Get("X-Identity"))
	})
}

func TestAuthenticatorExpired(t *testing.T) {
	verifier := &stubVerifier{err: core.ErrTokenExpired}
	handler := Authenticator(verifier)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer old")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
}

func TestOptionalAuthIgnoresBadTokens(t *testing.T) {
	handler := OptionalAuth(newStubVerifier())(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Identity"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "id-admin", rec.Header().Get("X-Identity"))
}

func TestAdminGate(t *testing.T) {
	handler := Authenticator(newStubVerifier())(RequireAdmin(echoIdentity()))

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "no session", token: "", status: http.StatusUnauthorized},
		{name: "member session", token: "member-token", status: http.StatusUnauthorized},
		{name: "admin session", token: "admin-token", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireRoleWithoutSession(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole("member")(echoIdentity()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContextHelpers(t *testing.T) {
	ctx := WithClaims(context.Background(), &SessionClaims{
		IdentityID: "abc",
		Role:       RoleAdmin,
	})

	assert.True(t, IsAuthenticated(ctx))
	assert.True(t, IsAdmin(ctx))
	assert.Equal(t, "abc", GetClaims(ctx).IdentityID)
	assert.True(t, GetClaims(ctx).IsAdmin())

	assert.False(t, IsAuthenticated(context.Background()))
	assert.Nil(t, GetClaims(context.Background()))
}
