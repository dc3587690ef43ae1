// Package api exposes the engine's query surface as a read-only JSON
// API: budget status, goal progress and the health score.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/engine"
	"fintrack/internal/log"
)

type Server struct {
	http.Server
	eng         *engine.Engine
	logger      *log.Logger
	rateLimiter *rateLimiter
	trace       *traceMiddleware
}

func NewServer(addr string, eng *engine.Engine, logger *log.Logger) *Server {
	s := &Server{
		eng:         eng,
		logger:      logger.WithComponent("api"),
		rateLimiter: newRateLimiter(),
	}
	s.trace = newTraceMiddleware(s.logger, extractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /v1/budgets", s.guard(s.handleListBudgets))
	mux.HandleFunc("GET /v1/budgets/{id}/status", s.guard(s.handleBudgetStatus))
	mux.HandleFunc("GET /v1/goals", s.guard(s.handleListGoals))
	mux.HandleFunc("GET /v1/goals/{id}/status", s.guard(s.handleGoalStatus))
	mux.HandleFunc("GET /v1/health-score", s.guard(s.handleHealthScore))

	s.Server = http.Server{
		Addr:           addr,
		Handler:        s.trace.wrap(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
	return s
}

// Shutdown stops the rate limiter cleanup goroutine along with the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	return s.Server.Shutdown(ctx)
}

// guard applies rate limiting and the standard response headers.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.allow(extractClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next(w, r)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// extractClientIP prefers the first X-Forwarded-For hop, falling back to
// the connection's remote address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
