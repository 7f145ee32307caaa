// Package server provides the HTTP route layer for the alias catalog.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap"
	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/metrics"
	"github.com/agentstation/aliasmap/internal/server/cache"
	"github.com/agentstation/aliasmap/internal/server/events"
	"github.com/agentstation/aliasmap/internal/server/middleware"
	"github.com/agentstation/aliasmap/internal/server/sse"
	ws "github.com/agentstation/aliasmap/internal/server/websocket"
	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app            application.Application
	client         aliasmap.Client
	metrics        *metrics.Metrics
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	limiter        *middleware.RateLimiter
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
}

// New creates a new server instance with the given configuration.
func New(app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()

	defaults := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaults.WaitTimeout
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = defaults.AuthHeader
	}

	client, err := app.Client()
	if err != nil {
		return nil, err
	}

	m := app.Metrics()
	wsHub := ws.NewHub(logger, ws.WithRecorder(m))
	sseBroadcaster := sse.NewBroadcaster(logger, sse.WithRecorder(m))
	broker := events.NewBroker(logger,
		events.WithSinks(wsHub, sseBroadcaster),
		events.WithRecorder(m),
	)

	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		app:            app,
		client:         client,
		metrics:        m,
		cache:          cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg),
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	server.connectHooks()

	logger.Debug().
		Str("prefix", cfg.PathPrefix).
		Dur("memo_ttl", cfg.CacheTTL).
		Msg("Server instance created")
	return server, nil
}

// checkOrigin allows any origin unless CORS is restricted to a list.
func checkOrigin(cfg Config) func(*http.Request) bool {
	if !cfg.CORSEnabled || len(cfg.CORSOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// connectHooks publishes catalog rebuild events to the broker.
func (s *Server) connectHooks() {
	s.client.OnRebuildStarted(func(force bool) {
		s.broker.Publish(events.Started{Force: force})
	})

	s.client.OnRebuilt(func(previous, current *catalogs.Snapshot) {
		s.cache.Clear()
		e, _ := s.broker.Publish(events.NewCompleted(previous, current))
		s.logger.Debug().
			Uint64("seq", e.Seq).
			Int("total_aliases", current.Len()).
			Msg("Rebuild completed event published")
	})

	s.client.OnRebuildFailed(func(err error) {
		stats := s.client.Stats()
		s.broker.Publish(events.Failed{
			ServingStale: stats.BuiltAt != nil,
			StaleBuiltAt: stats.BuiltAt,
		})
		s.logger.Debug().Err(err).Msg("Rebuild failed event published")
	})

	s.logger.Debug().Msg("Catalog hooks connected to event broker")
}

// Start starts background services (broker, WebSocket hub, SSE broadcaster)
// and, when configured, warms the catalog.
func (s *Server) Start() {
	go s.broker.Run(s.ctx)
	go s.wsHub.Run(s.ctx)
	go s.sseBroadcaster.Run(s.ctx)

	if s.config.WarmUp {
		go s.warmUp()
	}

	s.logger.Debug().Msg("All background services started")
}

// warmUp builds the first snapshot so early requests do not wait for it.
func (s *Server) warmUp() {
	start := time.Now()
	snap, err := s.client.Snapshot(s.ctx, false)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Cache warm-up failed; the first request will retry")
		}
		return
	}
	s.logger.Info().
		Int("aliases", snap.Len()).
		Dur("duration", time.Since(start)).
		Msg("Cache warm-up completed")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() (http.Handler, error) {
	return s.setupRouter()
}

// Shutdown stops background services and the client's auto-refresh.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")

	s.cancel()
	_ = s.client.AutoRefreshOff()
	if s.limiter != nil {
		s.limiter.Stop()
	}

	select {
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.logger.Info().Msg("Background services shut down successfully")
	}
	return nil
}

// Cache returns the server's response memo.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
