// Package handlers provides HTTP request handlers for the aliasmap API.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap"
	"github.com/agentstation/aliasmap/internal/server/cache"
	"github.com/agentstation/aliasmap/internal/server/sse"
	ws "github.com/agentstation/aliasmap/internal/server/websocket"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	client         aliasmap.Client
	cache          *cache.Cache
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	waitTimeout    time.Duration
	now            func() time.Time
}

// New creates a new Handlers instance.
// waitTimeout bounds how long a request waits for a snapshot; zero means no bound.
func New(
	client aliasmap.Client,
	cache *cache.Cache,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
	waitTimeout time.Duration,
) *Handlers {
	return &Handlers{
		client:         client,
		cache:          cache,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		logger:         logger,
		waitTimeout:    waitTimeout,
		now:            time.Now,
	}
}

// waitContext bounds ctx by the configured wait timeout.
func (h *Handlers) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.waitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.waitTimeout)
}

// boolParam parses an optional boolean query parameter.
func boolParam(r *http.Request, name string, fallback bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.NewValidationError(name, raw, "must be a boolean")
	}
	return v, nil
}

// millis converts a duration to fractional milliseconds rounded to two places.
func millis(d time.Duration) float64 {
	return float64(d.Microseconds()/10) / 100
}
