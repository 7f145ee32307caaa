package catalogs

import (
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/agentstation/aliasmap/pkg/constants"
)

// Snapshot is one fully assembled catalog. It is never mutated after
// NewSnapshot returns, so it may be shared freely between goroutines.
type Snapshot struct {
	seq        uint64
	aliases    []Alias
	searchText []string
	builtAt    time.Time
	stats      Statistics
	summaries  []NamespaceSummary
	namespaces []string
	providers  ProviderReport
}

var snapshotSeq atomic.Uint64

// NewSnapshot takes ownership of aliases and precomputes statistics and
// the lower-cased search text used by Query.
func NewSnapshot(aliases []Alias, builtAt time.Time, providers ProviderReport) *Snapshot {
	if aliases == nil {
		aliases = []Alias{}
	}
	stats, summaries := computeStatistics(aliases, constants.TopNamespaces)

	fold := newFolder()
	search := make([]string, len(aliases))
	for i, a := range aliases {
		search[i] = fold(a.searchText())
	}

	namespaces := make([]string, len(summaries))
	for i, s := range summaries {
		namespaces[i] = s.Namespace
	}
	sort.Strings(namespaces)

	providers.Failed = slices.Clone(providers.Failed)

	return &Snapshot{
		seq:        snapshotSeq.Add(1),
		aliases:    aliases,
		searchText: search,
		builtAt:    builtAt.UTC(),
		stats:      stats,
		summaries:  summaries,
		namespaces: namespaces,
		providers:  providers,
	}
}

// Aliases returns a copy of every alias in snapshot order.
func (s *Snapshot) Aliases() []Alias {
	return slices.Clone(s.aliases)
}

// Len returns the number of aliases.
func (s *Snapshot) Len() int {
	return len(s.aliases)
}

// Seq identifies the snapshot within the process. Every NewSnapshot call
// returns a higher value than the one before.
func (s *Snapshot) Seq() uint64 {
	return s.seq
}

// BuiltAt returns when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.builtAt)
}

// Statistics returns the aggregate counts.
func (s *Snapshot) Statistics() Statistics {
	stats := s.stats
	stats.TopNamespaces = slices.Clone(s.stats.TopNamespaces)
	return stats
}

// Providers returns the provider report of the build that produced s.
func (s *Snapshot) Providers() ProviderReport {
	report := s.providers
	report.Failed = slices.Clone(s.providers.Failed)
	return report
}

// Namespaces returns the distinct namespaces in lexical order.
func (s *Snapshot) Namespaces() []string {
	return slices.Clone(s.namespaces)
}

// NamespaceSummaries returns per-namespace alias counts, largest first.
func (s *Snapshot) NamespaceSummaries() []NamespaceSummary {
	return slices.Clone(s.summaries)
}
