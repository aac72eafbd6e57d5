// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// idleTTL is how long an unseen caller keeps its bucket.
	idleTTL = 10 * time.Minute
	// sweepEvery bounds how often idle buckets are dropped.
	sweepEvery = time.Minute
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps a token bucket per caller. A caller is its API secret
// key when one is sent, otherwise its client IP. Idle buckets are dropped
// lazily on later requests.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter allows perMinute requests per minute per caller with a
// burst of the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	perMinute = max(perMinute, 1)
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// reserve takes a token for key and returns how long the caller must wait
// when none was available.
func (rl *RateLimiter) reserve(key string) time.Duration {
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastSweep) >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) > idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	rl.mu.Unlock()

	res := b.lim.ReserveN(now, 1)
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return wait
	}
	return 0
}

// Middleware answers 429 with Retry-After once a caller is over budget.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := rl.reserve(callerKey(r)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if key := APIKeyFromRequest(r); key != "" {
		return "key:" + key
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the leftmost X-Forwarded-For entry, then X-Real-IP,
// then the connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
