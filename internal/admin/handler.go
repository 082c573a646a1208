// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/registration"
)

// RegistrationCounter reports per-family registration totals.
type RegistrationCounter interface {
	CountByFamily(ctx context.Context) ([]registration.FamilyCount, error)
}

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	registrations RegistrationCounter
	instructors   Counter
	identities    Counter
	dbStats       func() sql.DBStats
	redisStats    func() *redis.PoolStats
	redisPing     func(ctx context.Context) error
	dbPing        func(ctx context.Context) error
}

type HandlerConfig struct {
	Registrations RegistrationCounter
	Instructors   Counter
	Identities    Counter
	DBStats       func() sql.DBStats
	RedisStats    func() *redis.PoolStats
	RedisPing     func(ctx context.Context) error
	DBPing        func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		registrations: cfg.Registrations,
		instructors:   cfg.Instructors,
		identities:    cfg.Identities,
		dbStats:       cfg.DBStats,
		redisStats:    cfg.RedisStats,
		redisPing:     cfg.RedisPing,
		dbPing:        cfg.DBPing,
	}
}

// RegisterRoutes mounts the dashboard under an already admin-gated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.GetDashboardStats)
	r.Get("/stats/system", h.GetSystemStats)
	r.Get("/stats/db", h.GetDatabaseStats)
	r.Get("/stats/redis", h.GetRedisStats)
	r.Get("/stats/runtime", h.GetRuntimeStats)
}

// GetDashboardStats returns registration counts per family plus instructor
// and identity totals. Counts are read on every request.
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	families, err := h.registrations.CountByFamily(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	instructors, err := h.instructors.Count(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := DashboardStatsResponse{
		Registrations: families,
		Instructors:   instructors,
	}
	for _, f := range families {
		resp.TotalRegistrations += f.Total
	}

	if h.identities != nil {
		identities, err := h.identities.Count(ctx)
		if err != nil {
			core.InternalServerError(w, err)
			return
		}
		resp.Identities = identities
	}

	core.OK(w, resp)
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntimeStats(),
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type DashboardStatsResponse struct {
	Registrations      []registration.FamilyCount `json:"registrations"`
	TotalRegistrations int                        `json:"total_registrations"`
	Instructors        int                        `json:"instructors"`
	Identities         int                        `json:"identities"`
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
