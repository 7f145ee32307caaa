package cache

import (
	"time"

	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// Stats describes the cache without touching the remote API.
type Stats struct {
	TotalAliases       int                         `json:"total_aliases" yaml:"total_aliases"`
	TotalNamespaces    int                         `json:"total_namespaces" yaml:"total_namespaces"`
	TotalResourceTypes int                         `json:"total_resource_types" yaml:"total_resource_types"`
	CacheAgeSeconds    *int64                      `json:"cache_age_seconds" yaml:"cache_age_seconds"`
	CacheValid         bool                        `json:"cache_valid" yaml:"cache_valid"`
	TopNamespaces      []catalogs.NamespaceSummary `json:"top_namespaces" yaml:"top_namespaces"`
	BuiltAt            *time.Time                  `json:"built_at" yaml:"built_at"`
	TTLSeconds         int64                       `json:"ttl_seconds" yaml:"ttl_seconds"`
	Rebuilding         bool                        `json:"rebuilding" yaml:"rebuilding"`
	LastError          string                      `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastErrorAt        *time.Time                  `json:"last_error_at,omitempty" yaml:"last_error_at,omitempty"`
	Providers          *catalogs.ProviderReport    `json:"providers,omitempty" yaml:"providers,omitempty"`
}

// Stats reports on the current snapshot. It never triggers a rebuild.
func (m *Manager) Stats() Stats {
	stats := Stats{
		TTLSeconds:    int64(m.ttl / time.Second),
		Rebuilding:    m.rebuilding.Load(),
		TopNamespaces: []catalogs.NamespaceSummary{},
	}

	if f := m.LastFailure(); f != nil {
		at := f.At
		stats.LastError = f.Err.Error()
		stats.LastErrorAt = &at
	}

	snap := m.current.Load()
	if snap == nil {
		return stats
	}

	s := snap.Statistics()
	stats.TotalAliases = s.TotalAliases
	stats.TotalNamespaces = s.TotalNamespaces
	stats.TotalResourceTypes = s.TotalResourceTypes
	stats.TopNamespaces = s.TopNamespaces

	age := int64(snap.Age(m.now()) / time.Second)
	stats.CacheAgeSeconds = &age
	stats.CacheValid = m.fresh(snap)

	builtAt := snap.BuiltAt()
	stats.BuiltAt = &builtAt

	report := snap.Providers()
	stats.Providers = &report
	return stats
}
