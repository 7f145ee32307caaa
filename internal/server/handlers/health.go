package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/aliasmap/internal/server/response"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// HandleHealth handles GET /api/health (liveness). It never touches the catalog.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":          "healthy",
		"subscription_id": logging.MaskID(h.client.SubscriptionID()),
		"timestamp":       h.now().UTC().Format(time.RFC3339),
	})
}

// HandleReady handles GET /api/ready. It reports 503 until a snapshot exists.
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	if !h.client.Ready() {
		response.ServiceUnavailable(w, "Catalog is still being built")
		return
	}

	stats := h.client.Stats()
	response.OK(w, map[string]any{
		"status":            "ready",
		"cache_valid":       stats.CacheValid,
		"rebuilding":        stats.Rebuilding,
		"response_cache":    h.cache.GetStats(),
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}
