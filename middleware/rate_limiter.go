// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/HSouheill/evently_backend/models"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter throttles clients per IP, with stricter limits on sensitive endpoints.
// Keys are ip+route so a burst on one endpoint does not block the others.
type RateLimiter struct {
	limiters       map[string]*rate.Limiter
	lastSeen       map[string]time.Time
	blocked        map[string]time.Time
	mu             sync.Mutex
	defaultLimit   endpointLimit
	blockDuration  time.Duration
	idleTimeout    time.Duration // longer than any limiter takes to refill
	endpointLimits map[string]endpointLimit
	now            func() time.Time
}

func NewRateLimiter() *RateLimiter {
	limiter := &RateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		lastSeen:      make(map[string]time.Time),
		blocked:       make(map[string]time.Time),
		defaultLimit:  endpointLimit{limit: rate.Every(100 * time.Millisecond), burst: 20}, // 10 requests per second
		blockDuration: 5 * time.Minute,
		idleTimeout:   15 * time.Minute,
		endpointLimits: map[string]endpointLimit{
			// OTP endpoints are the brute force target
			"/api/send-otp":                {limit: rate.Every(20 * time.Second), burst: 3},
			"/api/verify-otp-code":         {limit: rate.Every(5 * time.Second), burst: 5},
			"/api/withdrawals":             {limit: rate.Every(2 * time.Second), burst: 5},
			"/api/withdrawals/:id/payout":  {limit: rate.Every(time.Second), burst: 5},
			"/api/withdrawals/:id/resolve": {limit: rate.Every(time.Second), burst: 5},
		},
		now: time.Now,
	}
	return limiter
}

// SetEndpointLimit overrides the limit for a route path
func (r *RateLimiter) SetEndpointLimit(path string, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointLimits[path] = endpointLimit{limit: limit, burst: burst}
}

// Cleanup drops expired blocks and limiters that have been idle past idleTimeout
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for key, until := range r.blocked {
		if now.After(until) {
			delete(r.blocked, key)
			r.forget(key)
		}
	}
	for key, seen := range r.lastSeen {
		if _, blocked := r.blocked[key]; blocked {
			continue
		}
		if now.Sub(seen) > r.idleTimeout {
			r.forget(key)
		}
	}
}

func (r *RateLimiter) forget(key string) {
	delete(r.limiters, key)
	delete(r.lastSeen, key)
}

// RunCleanup calls Cleanup every interval until stop is closed
func (r *RateLimiter) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Cleanup()
		case <-stop:
			return
		}
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			key := c.RealIP() + "|" + path

			r.mu.Lock()
			now := r.now()
			if until, ok := r.blocked[key]; ok {
				if now.Before(until) {
					r.mu.Unlock()
					return tooManyRequests(c, until)
				}
				delete(r.blocked, key)
				r.forget(key)
			}

			cfg, ok := r.endpointLimits[path]
			if !ok {
				cfg = r.defaultLimit
			}
			limiter, ok := r.limiters[key]
			if !ok {
				limiter = rate.NewLimiter(cfg.limit, cfg.burst)
				r.limiters[key] = limiter
			}
			r.lastSeen[key] = now

			if !limiter.AllowN(now, 1) {
				until := now.Add(r.blockDuration)
				r.blocked[key] = until
				r.mu.Unlock()
				return tooManyRequests(c, until)
			}
			r.mu.Unlock()

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, retryAfter time.Time) error {
	c.Response().Header().Set("Retry-After", retryAfter.UTC().Format(http.TimeFormat))
	return c.JSON(http.StatusTooManyRequests, models.Response{
		Success: false,
		Message: "Too many requests",
	})
}
