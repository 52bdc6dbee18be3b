package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/therealutkarshpriyadarshi/vector/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/vector/pkg/observability"
)

// Config holds the REST server configuration.
type Config struct {
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
}

// Server represents the training service's REST API server. It calls the
// Engine facade in-process through its Handler; there is no gRPC backend
// to dial (§10).
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
	log        *observability.Logger
}

// NewServer creates a new REST API server around an already-built Handler.
func NewServer(config Config, handler *Handler, log *observability.Logger) *Server {
	server := &Server{
		config:  config,
		handler: handler,
		mux:     http.NewServeMux(),
		log:     log,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/stats", s.handler.GetStats)
	s.mux.HandleFunc("/v1/train", s.handler.SubmitTrain)
	s.mux.HandleFunc("/v1/train/", s.routeTrainWithID)
}

// routeTrainWithID dispatches /v1/train/{job_id} and
// /v1/train/{job_id}/cancel to the appropriate handler.
func (s *Server) routeTrainWithID(w http.ResponseWriter, r *http.Request) {
	jobID, isCancel := splitTrainPath(r.URL.Path)
	if jobID == "" {
		http.NotFound(w, r)
		return
	}
	if isCancel {
		s.handler.CancelTrain(w, r, jobID)
		return
	}
	s.handler.GetTrainStatus(w, r, jobID)
}

// withMiddleware wraps the handler with the full chain. Each wrap goes
// around the previous one, so a request passes JWT auth first (outermost),
// then rate limiting, then CORS, then logging (innermost) — the teacher's
// ordering in pkg/api/rest/server.go, unchanged.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = loggingMiddleware(s.log)(handler)

	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}

	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	handler = middleware.AuthMiddleware(s.config.Auth)(handler)

	return handler
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.log.Info("starting training service", map[string]interface{}{
		"address": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("rest: starting HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down training service", nil)
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs every HTTP request through the shared structured
// logger, mirroring the teacher's log.Printf-per-request style but routed
// through observability.Logger instead of the stdlib log package.
func loggingMiddleware(log *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("request", map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.statusCode,
				"duration": time.Since(start).String(),
			})
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
