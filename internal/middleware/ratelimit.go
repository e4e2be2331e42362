package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/auth"
	"github.com/sakif/mindflow/internal/handler"
	"github.com/sakif/mindflow/internal/metrics"
)

// sweepInterval is how often idle buckets are dropped.
const sweepInterval = 5 * time.Minute

// UserRateLimiter hands every authenticated user their own token bucket.
// Buckets hold perMinute tokens and refill continuously. A bucket that has
// refilled completely carries no state, so it is evicted on the next sweep
// and the map only holds users active within the last sweep window.
type UserRateLimiter struct {
	perMinute int
	metrics   *metrics.Metrics

	mu        sync.Mutex
	buckets   map[string]*ratelimit.Bucket
	lastSweep time.Time
	clock     ratelimit.Clock
}

// NewUserRateLimiter returns nil when perMinute <= 0; a nil limiter
// lets everything through.
func NewUserRateLimiter(perMinute int, m *metrics.Metrics) *UserRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &UserRateLimiter{
		perMinute: perMinute,
		metrics:   m,
		buckets:   make(map[string]*ratelimit.Bucket),
	}
}

// Allow takes one token from userID's bucket.
func (l *UserRateLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	return l.bucket(userID).TakeAvailable(1) == 1
}

func (l *UserRateLimiter) bucket(userID string) *ratelimit.Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now := l.now(); now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep()
		l.lastSweep = now
	}

	b, ok := l.buckets[userID]
	if !ok {
		rate := float64(l.perMinute) / time.Minute.Seconds()
		if l.clock != nil {
			b = ratelimit.NewBucketWithRateAndClock(rate, int64(l.perMinute), l.clock)
		} else {
			b = ratelimit.NewBucketWithRate(rate, int64(l.perMinute))
		}
		l.buckets[userID] = b
	}
	return b
}

func (l *UserRateLimiter) now() time.Time {
	if l.clock != nil {
		return l.clock.Now()
	}
	return time.Now()
}

// sweep drops full buckets. Callers hold l.mu.
func (l *UserRateLimiter) sweep() {
	for id, b := range l.buckets {
		if b.Available() >= b.Capacity() {
			delete(l.buckets, id)
		}
	}
}

// retryAfterSeconds is how long one token takes to refill, rounded up.
func (l *UserRateLimiter) retryAfterSeconds() int {
	return (60 + l.perMinute - 1) / l.perMinute
}

// Middleware rejects requests over the limit with 429. It must run after
// auth.RequireAuth; requests without a user id are passed through.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if ok && !l.Allow(userID) {
			l.metrics.RateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			handler.WriteError(w, apperror.TooManyRequests("Too many chat requests. Please slow down."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
