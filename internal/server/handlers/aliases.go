package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/agentstation/aliasmap/internal/server/cache"
	"github.com/agentstation/aliasmap/internal/server/response"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// AliasesResponse is the payload of GET /api/aliases.
type AliasesResponse struct {
	Aliases     []catalogs.Alias `json:"aliases"`
	Count       int              `json:"count"`
	QueryTimeMs float64          `json:"query_time_ms"`
	CacheValid  bool             `json:"cache_valid"`
	BuiltAt     time.Time        `json:"built_at"`
}

// HandleAliases handles GET /api/aliases?query=&namespace=&force_refresh=.
// All whitespace-separated query terms must match; namespace must match exactly.
func (h *Handlers) HandleAliases(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	force, err := boolParam(r, "force_refresh", false)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	params := r.URL.Query()
	q := catalogs.Query{
		Text:      params.Get("query"),
		Namespace: strings.TrimSpace(params.Get("namespace")),
	}

	ctx, cancel := h.waitContext(r.Context())
	defer cancel()

	snap, err := h.client.Snapshot(ctx, force)
	if err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("Alias query could not get a snapshot")
		response.ErrorFromType(w, err)
		return
	}

	aliases := cache.Remember(h.cache, cache.Key(snap, "aliases", q.Key()), func() []catalogs.Alias {
		return snap.Query(q)
	})

	response.OK(w, AliasesResponse{
		Aliases:     aliases,
		Count:       len(aliases),
		QueryTimeMs: millis(h.now().Sub(start)),
		CacheValid:  h.client.Fresh(snap),
		BuiltAt:     snap.BuiltAt(),
	})
}
