// AngelaMos | 2026
// feedback_test.go

package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/consultancy-api/internal/middleware"
)

type memoryRepository struct {
	mu   sync.Mutex
	rows []Feedback
	fail error
}

func (m *memoryRepository) Create(_ context.Context, f *Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	m.rows = append([]Feedback{*f}, m.rows...)
	return nil
}

func (m *memoryRepository) List(_ context.Context, limit, offset int) ([]Feedback, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := min(offset+limit, len(m.rows))
	if offset >= end {
		return []Feedback{}, len(m.rows), nil
	}
	return append([]Feedback(nil), m.rows[offset:end]...), len(m.rows), nil
}

func optionalHeaderSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Identity"); id != "" {
			r = r.WithContext(middleware.WithClaims(r.Context(), &middleware.SessionClaims{
				IdentityID: id,
				Role:       r.Header.Get("X-Role"),
			}))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(repo *memoryRepository) *chi.Mux {
	h := NewHandler(NewService(repo))

	r := chi.NewRouter()
	h.RegisterRoutes(r, optionalHeaderSession)
	r.Route("/admin", func(r chi.Router) {
		r.Use(optionalHeaderSession)
		r.Use(middleware.RequireAdmin)
		h.RegisterAdminRoutes(r)
	})
	return r
}

func post(r http.Handler, identity string, body any) *httptest.ResponseRecorder {
	buf := &bytes.Buffer{}
	_ = json.NewEncoder(buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, "/feedback", buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-Identity", identity)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubmitNormalizesAndLinksIdentity(t *testing.T) {
	repo := &memoryRepository{}
	svc := NewService(repo)

	f, err := svc.Submit(context.Background(), "", SubmitRequest{
		Name:    "  Grace Hopper ",
		Email:   "Grace@Navy.MIL",
		Message: " The compiler works. ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", f.Name)
	assert.Equal(t, "grace@navy.mil", f.Email)
	assert.Equal(t, "The compiler works.", f.Message)
	assert.Nil(t, f.IdentityID)

	f, err = svc.Submit(context.Background(), "identity-1", SubmitRequest{
		Name: "Grace", Email: "grace@navy.mil", Message: "Again",
	})
	require.NoError(t, err)
	require.NotNil(t, f.IdentityID)
	assert.Equal(t, "identity-1", *f.IdentityID)
}

func TestSubmitEndpoint(t *testing.T) {
	repo := &memoryRepository{}
	r := newTestRouter(repo)

	rec := post(r, "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "message": "Lovely service",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(r, "identity-7", map[string]string{
		"name": "Ada", "email": "ada@example.com", "message": "Signed in this time",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.rows, 2)
	require.NotNil(t, repo.rows[0].IdentityID)
	assert.Equal(t, "identity-7", *repo.rows[0].IdentityID)

	rec = post(r, "", map[string]string{"name": "Ada", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")

	repo.fail = errors.New("db down")
	rec = post(r, "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "message": "x",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListRequiresAdmin(t *testing.T) {
	repo := &memoryRepository{}
	svc := NewService(repo)
	for range 3 {
		_, err := svc.Submit(context.Background(), "", SubmitRequest{
			Name: "A", Email: "a@example.com", Message: "hi",
		})
		require.NoError(t, err)
	}
	r := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/admin/feedback", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/feedback?page=2&page_size=2", nil)
	req.Header.Set("X-Identity", "admin-1")
	req.Header.Set("X-Role", middleware.RoleAdmin)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []Feedback `json:"data"`
		Meta struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
}
