package server

import (
	"net/http"

	"github.com/agentstation/aliasmap/internal/server/handlers"
	"github.com/agentstation/aliasmap/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() (http.Handler, error) {
	mux := http.NewServeMux()

	h := handlers.New(
		s.client,
		s.cache,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.logger,
		s.config.WaitTimeout,
	)

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Health checks
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/ready", h.HandleReady)

	// Catalog
	mux.HandleFunc("GET "+prefix+"/aliases", h.HandleAliases)
	mux.HandleFunc("GET "+prefix+"/namespaces", h.HandleNamespaces)
	mux.HandleFunc("GET "+prefix+"/statistics", h.HandleStatistics)
	mux.HandleFunc("POST "+prefix+"/refresh", h.HandleRefresh)

	// Real-time endpoints
	mux.HandleFunc("GET "+prefix+"/updates/ws", h.HandleWebSocket)
	mux.HandleFunc("GET "+prefix+"/updates/stream", h.HandleSSE)

	if s.config.MetricsEnabled && s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// applyMiddleware wraps handler with the middleware chain, outermost first.
func (s *Server) applyMiddleware(handler http.Handler) (http.Handler, error) {
	cfg := s.config

	gzip, err := middleware.Gzip()
	if err != nil {
		return nil, err
	}

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.ProcessTime(),
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
		}
		chain = append(chain, middleware.CORS(corsConfig))
	}

	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.HeaderName = cfg.AuthHeader
		authConfig.PublicPaths = []string{"/health", cfg.PathPrefix + "/health", cfg.PathPrefix + "/ready", "/metrics"}
		if cfg.APIKey != "" {
			authConfig.APIKey = cfg.APIKey
		}
		chain = append(chain, middleware.Auth(authConfig, s.logger))
	}

	if cfg.RateLimit > 0 {
		if s.limiter == nil {
			s.limiter = middleware.NewRateLimiter(cfg.RateLimit, s.logger)
		}
		chain = append(chain, middleware.RateLimit(s.limiter))
	}

	chain = append(chain, gzip, middleware.Metrics(s.metrics))

	return middleware.Chain(chain...)(handler), nil
}
