// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/angelamos/consultancy-api/internal/core"
)

// KeyFunc names the subject a request is counted against.
type KeyFunc func(*http.Request) string

type RateLimitConfig struct {
	// Scope separates the counters of limiters sharing one Redis.
	Scope    string
	Limit    redis_rate.Limit
	KeyFunc  KeyFunc
	// FailOpen counts in process memory when Redis errors instead of
	// answering 503.
	FailOpen bool
	// WritesOnly lets GET, HEAD and OPTIONS through uncounted.
	WritesOnly bool
}

type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Scope == "" {
		cfg.Scope = "global"
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(localEntryTTL),
		config:   cfg,
	}
}

func (rl *RateLimiter) key(r *http.Request) string {
	return "ratelimit:" + rl.config.Scope + ":" + rl.config.KeyFunc(r)
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.WritesOnly && isReadOnly(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.key(r)
		res, err := rl.limiter.Allow(r.Context(), key, rl.config.Limit)
		if err != nil {
			if !rl.config.FailOpen {
				core.JSON(w, http.StatusServiceUnavailable, core.Response{
					Success: false,
					Error: &core.ErrorBody{
						Code:    "RATE_LIMIT_UNAVAILABLE",
						Message: "Rate limiting is unavailable",
					},
				})
				return
			}
			slog.Debug("rate limiter using local buckets", "error", err, "key", key)
			res = rl.fallback.allow(key, rl.config.Limit, time.Now())
		}

		writeLimitHeaders(w.Header(), res)

		if res.Allowed == 0 {
			rejectLimited(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isReadOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// KeyByIP trusts the last X-Forwarded-For hop, which the edge proxy appends.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return "ip:" + strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// KeyByIdentity counts authenticated callers per account and falls back to
// the client address for anonymous requests. It must run after the
// authenticator.
func KeyByIdentity(r *http.Request) string {
	if id := GetIdentityID(r.Context()); id != "" {
		return "identity:" + id
	}
	return KeyByIP(r)
}

// KeyByIPAndEndpoint buckets credential endpoints separately so a burst of
// sign-in attempts cannot starve verification or resend calls.
func KeyByIPAndEndpoint(r *http.Request) string {
	return KeyByIP(r) + ":endpoint:" + routePattern(r.URL.Path)
}

func routePattern(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if core.ValidID(seg) || isDigits(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeLimitHeaders(h http.Header, res *redis_rate.Result) {
	reset := max(int(res.ResetAfter.Seconds()), 0)

	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf(
		"%d;w=%d", res.Limit.Rate, int(res.Limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, reset))
}

func rejectLimited(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	core.JSON(w, http.StatusTooManyRequests, core.Response{
		Success: false,
		Error: &core.ErrorBody{
			Code: "RATE_LIMITED",
			Message: fmt.Sprintf(
				"Rate limit exceeded. Retry after %d seconds.",
				retryAfter,
			),
		},
	})
}

const localEntryTTL = 10 * time.Minute

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps per-key token buckets in memory while Redis is
// unreachable. Idle buckets are swept on access, at most once per ttl.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	ttl       time.Duration
	lastSweep time.Time
}

func newLocalLimiter(ttl time.Duration) *localLimiter {
	return &localLimiter{
		buckets: make(map[string]*localBucket),
		ttl:     ttl,
	}
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
	now time.Time,
) *redis_rate.Result {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := limit.Period / time.Duration(limit.Rate)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(b.limiter.TokensAt(now)), 0)

	return res
}

func (l *localLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	l.lastSweep = now

	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return PerWindow(requests, burst, time.Minute)
}

func PerWindow(requests, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	return redis_rate.Limit{
		Rate:   max(requests, 1),
		Burst:  burst,
		Period: window,
	}
}
