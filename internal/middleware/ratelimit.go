package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const (
	defaultTriggerRPM = 6
	clientIdleTTL     = 10 * time.Minute
	clientGCThreshold = 1000
)

type clientLimiter struct {
	general  *rate.Limiter
	trigger  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limits requests per client IP. Run triggers have their
// own, stricter bucket because each one starts a sweep pass.
type RateLimitMiddleware struct {
	generalRPM int
	triggerRPM int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

// NewRateLimitMiddleware treats generalRPM <= 0 as unlimited. triggerRPM <= 0
// falls back to a default.
func NewRateLimitMiddleware(generalRPM int, triggerRPM int) *RateLimitMiddleware {
	if triggerRPM <= 0 {
		triggerRPM = defaultTriggerRPM
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		triggerRPM: triggerRPM,
		clients:    map[string]*clientLimiter{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := m.getLimiter(extractClientIP(r))

		target := limiter.general
		if isRunTrigger(r) {
			target = limiter.trigger
		}

		if target != nil && !target.Allow() {
			retry := 1
			if reservation := target.Reserve(); reservation.OK() {
				retry = max(retry, int(reservation.Delay().Round(time.Second)/time.Second))
				reservation.Cancel()
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSONError(w, http.StatusTooManyRequests, &model.APIError{
				Code:    "RATE_LIMITED",
				Message: "Too many requests",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isRunTrigger(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasPrefix(strings.ToLower(r.URL.Path), "/api/v1/runs/")
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = now
		return limiter
	}

	created := &clientLimiter{
		trigger:  perMinute(m.triggerRPM),
		lastSeen: now,
	}
	if m.generalRPM > 0 {
		created.general = perMinute(m.generalRPM)
	}
	m.clients[clientIP] = created
	m.gcLocked(now)

	return created
}

func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (m *RateLimitMiddleware) gcLocked(now time.Time) {
	if len(m.clients) < clientGCThreshold {
		return
	}

	cutoff := now.Add(-clientIdleTTL)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func extractClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
