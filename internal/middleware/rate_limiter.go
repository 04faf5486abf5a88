package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nutriwellness/nutricare/internal/httpx"
)

// IPRateLimiter keeps one token bucket per client IP. Entries that stay idle
// are evicted by a background sweep so the map does not grow unbounded.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	done     chan struct{}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a limiter allowing limit events per second with
// the given burst, and starts the idle-entry sweep.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		done:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the background sweep. The limiter itself keeps working.
func (l *IPRateLimiter) Stop() {
	close(l.done)
}

// PerMinute is a convenience constructor for form endpoints where the
// natural unit is attempts per minute.
func PerMinute(n int) *IPRateLimiter {
	return NewIPRateLimiter(rate.Limit(float64(n)/60.0), n)
}

// Allow reports whether a request from ip is within budget.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (l *IPRateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Wrap applies the limiter to a handler. Over-budget requests get a 429.
func (l *IPRateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			httpx.JSONError(w, http.StatusTooManyRequests, "too_many_requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
