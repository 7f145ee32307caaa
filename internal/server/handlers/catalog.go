package handlers

import (
	"net/http"

	"github.com/agentstation/aliasmap/internal/server/cache"
	"github.com/agentstation/aliasmap/internal/server/response"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// NamespacesResponse is the payload of GET /api/namespaces.
type NamespacesResponse struct {
	Namespaces []string                    `json:"namespaces"`
	WithCounts []catalogs.NamespaceSummary `json:"with_counts,omitempty"`
	CacheValid bool                        `json:"cache_valid"`
}

// HandleNamespaces handles GET /api/namespaces?with_counts=.
func (h *Handlers) HandleNamespaces(w http.ResponseWriter, r *http.Request) {
	withCounts, err := boolParam(r, "with_counts", false)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	ctx, cancel := h.waitContext(r.Context())
	defer cancel()

	snap, err := h.client.Snapshot(ctx, false)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	resp := NamespacesResponse{CacheValid: h.client.Fresh(snap)}
	if withCounts {
		// Namespaces follow the counted order, largest first.
		resp.WithCounts = cache.Remember(h.cache, cache.Key(snap, "namespace-counts"), snap.NamespaceSummaries)
		resp.Namespaces = make([]string, len(resp.WithCounts))
		for i, s := range resp.WithCounts {
			resp.Namespaces[i] = s.Namespace
		}
	} else {
		resp.Namespaces = cache.Remember(h.cache, cache.Key(snap, "namespaces"), snap.Namespaces)
	}
	response.OK(w, resp)
}

// HandleStatistics handles GET /api/statistics. It never triggers a rebuild.
func (h *Handlers) HandleStatistics(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, h.client.Stats())
}

// RefreshResponse is the payload of POST /api/refresh.
type RefreshResponse struct {
	Message       string                  `json:"message"`
	AliasesCount  int                     `json:"aliases_count"`
	Statistics    catalogs.Statistics     `json:"statistics"`
	Providers     catalogs.ProviderReport `json:"providers"`
	RefreshTimeMs float64                 `json:"refresh_time_ms"`
	CacheValid    bool                    `json:"cache_valid"`
}

// HandleRefresh handles POST /api/refresh?force_refresh= (default true).
// Without force it only rebuilds a stale snapshot.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	force, err := boolParam(r, "force_refresh", true)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	ctx, cancel := h.waitContext(r.Context())
	defer cancel()

	var snap *catalogs.Snapshot
	if force {
		snap, err = h.client.Refresh(ctx)
	} else {
		snap, err = h.client.Snapshot(ctx, false)
	}
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Bool("force", force).Msg("Refresh failed")
		response.ErrorFromType(w, err)
		return
	}

	stats := h.client.Stats()
	message := "Cache refreshed successfully"
	switch {
	case stats.LastError != "":
		message = "Rebuild failed; serving the previous catalog"
	case stats.Rebuilding:
		message = "Rebuild still running; serving the previous catalog"
	}

	response.OK(w, RefreshResponse{
		Message:       message,
		AliasesCount:  snap.Len(),
		Statistics:    snap.Statistics(),
		Providers:     snap.Providers(),
		RefreshTimeMs: millis(h.now().Sub(start)),
		CacheValid:    h.client.Fresh(snap),
	})
}
