package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/craftauth/yggdrasil/internal/http/response"
	"github.com/craftauth/yggdrasil/internal/observability"
)

// Decision is one limiter verdict. ResetAt is when the current window
// ends; RetryAfter is only meaningful on denial.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type windowRecord struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimiter counts hits per key in fixed, non-sliding windows.
// The first hit opens a window; the counter resets when the next hit
// lands after the interval has fully elapsed.
type FixedWindowLimiter struct {
	interval  time.Duration
	threshold int

	mu      sync.Mutex
	records map[string]*windowRecord
	cleanup time.Time
	now     func() time.Time
}

func NewFixedWindowLimiter(interval time.Duration, threshold int) *FixedWindowLimiter {
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 1
	}
	return &FixedWindowLimiter{
		interval:  interval,
		threshold: threshold,
		records:   make(map[string]*windowRecord),
		cleanup:   time.Now().Add(interval),
		now:       time.Now,
	}
}

// Allow counts a hit for key and decides. Stale records are pruned
// opportunistically so an idle limiter does not hold dead keys forever.
func (l *FixedWindowLimiter) Allow(key string) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, rec := range l.records {
			if now.Sub(rec.windowStart) >= 2*l.interval {
				delete(l.records, k)
			}
		}
		l.cleanup = now.Add(l.interval)
	}

	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) >= l.interval {
		rec = &windowRecord{windowStart: now}
		l.records[key] = rec
	}
	rec.count++

	resetAt := rec.windowStart.Add(l.interval)
	remaining := l.threshold - rec.count
	if remaining < 0 {
		remaining = 0
	}
	if rec.count > l.threshold {
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter, ResetAt: resetAt}
	}
	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

// RateLimiter applies a FixedWindowLimiter to requests, keyed by client
// IP by default.
type RateLimiter struct {
	limiter   *FixedWindowLimiter
	scope     string
	keyFunc   func(r *http.Request) string
	onLimited func(r *http.Request, scope string)
}

func NewRateLimiter(interval time.Duration, threshold int, scope string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		limiter: NewFixedWindowLimiter(interval, threshold),
		scope:   scope,
		keyFunc: clientIPKey,
	}
}

// WithKeyFunc overrides how requests are bucketed.
func (rl *RateLimiter) WithKeyFunc(keyFunc func(r *http.Request) string) *RateLimiter {
	if keyFunc != nil {
		rl.keyFunc = keyFunc
	}
	return rl
}

// WithOnLimited installs a hook called with the denied request and the
// limiter's scope just before the 429 is written.
func (rl *RateLimiter) WithOnLimited(hook func(r *http.Request, scope string)) *RateLimiter {
	rl.onLimited = hook
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			decision := rl.limiter.Allow(rl.scope + ":" + key)
			writeRateLimitHeaders(w.Header(), rl.limiter.threshold, decision)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				if rl.onLimited != nil {
					rl.onLimited(r, rl.scope)
				}
				w.Header().Set("Retry-After", retryAfterHeader(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, response.ErrorTooManyRequests,
					"The client has sent too many requests within a certain amount of time.")
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		return ip.String()
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, decision Decision) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))
}
