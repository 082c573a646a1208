// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/consultancy-api/internal/registration"
)

type fixedFamilies struct {
	counts []registration.FamilyCount
	err    error
}

func (f fixedFamilies) CountByFamily(context.Context) ([]registration.FamilyCount, error) {
	return f.counts, f.err
}

type fixedCount int

func (c fixedCount) Count(context.Context) (int, error) { return int(c), nil }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDashboardStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Registrations: fixedFamilies{counts: []registration.FamilyCount{
			{Family: registration.FamilyTutor, Total: 3, Pending: 1, Accepted: 2, Paid: 1},
			{Family: registration.FamilyTraining, Total: 4, Pending: 4},
		}},
		Instructors: fixedCount(5),
		Identities:  fixedCount(12),
	})

	rec := serve(h, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DashboardStatsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.Data.TotalRegistrations)
	assert.Equal(t, 5, resp.Data.Instructors)
	assert.Equal(t, 12, resp.Data.Identities)
	require.Len(t, resp.Data.Registrations, 2)
	assert.Equal(t, 2, resp.Data.Registrations[0].Accepted)
}

func TestDashboardStatsFailure(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Registrations: fixedFamilies{err: errors.New("db down")},
		Instructors:   fixedCount(0),
	})

	rec := serve(h, "/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSystemStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Registrations: fixedFamilies{},
		Instructors:   fixedCount(0),
		DBStats: func() sql.DBStats {
			return sql.DBStats{MaxOpenConnections: 25, InUse: 2, WaitDuration: time.Second}
		},
		RedisStats: func() *redis.PoolStats {
			return &redis.PoolStats{Hits: 9, TotalConns: 3}
		},
		DBPing:    func(context.Context) error { return nil },
		RedisPing: func(context.Context) error { return errors.New("refused") },
	})

	rec := serve(h, "/stats/system")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data.Database.Healthy)
	assert.False(t, resp.Data.Redis.Healthy)
	require.NotNil(t, resp.Data.Database.Stats)
	assert.Equal(t, 25, resp.Data.Database.Stats.MaxOpenConnections)
	assert.Equal(t, "1s", resp.Data.Database.Stats.WaitDuration)
	require.NotNil(t, resp.Data.Redis.Stats)
	assert.Equal(t, uint32(9), resp.Data.Redis.Stats.Hits)
	assert.NotEmpty(t, resp.Data.Runtime.GoVersion)
}

func TestPoolStatsWithoutSources(t *testing.T) {
	h := NewHandler(HandlerConfig{})

	rec := serve(h, "/stats/db")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "max_open_connections")

	rec = serve(h, "/stats/runtime")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "num_goroutine")
}
