package catalogs

import "sort"

// Statistics are the aggregate counts of a snapshot.
type Statistics struct {
	TotalAliases       int                `json:"total_aliases" yaml:"total_aliases"`
	TotalNamespaces    int                `json:"total_namespaces" yaml:"total_namespaces"`
	TotalResourceTypes int                `json:"total_resource_types" yaml:"total_resource_types"`
	TopNamespaces      []NamespaceSummary `json:"top_namespaces" yaml:"top_namespaces"`
}

// ProviderReport records which providers made it into a snapshot.
type ProviderReport struct {
	Total     int      `json:"total" yaml:"total"`
	Succeeded int      `json:"succeeded" yaml:"succeeded"`
	Failed    []string `json:"failed" yaml:"failed"`
}

// Complete reports whether every enumerated provider contributed.
func (r ProviderReport) Complete() bool {
	return len(r.Failed) == 0
}

// computeStatistics scans aliases once and returns the totals together
// with the per-namespace counts, ordered by count descending then name.
func computeStatistics(aliases []Alias, top int) (Statistics, []NamespaceSummary) {
	counts := make(map[string]int)
	types := make(map[string]struct{})
	for _, a := range aliases {
		counts[a.Namespace]++
		types[a.QualifiedType()] = struct{}{}
	}

	summaries := make([]NamespaceSummary, 0, len(counts))
	for ns, n := range counts {
		summaries = append(summaries, NamespaceSummary{Namespace: ns, Count: n})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].Namespace < summaries[j].Namespace
	})

	n := min(top, len(summaries))
	stats := Statistics{
		TotalAliases:       len(aliases),
		TotalNamespaces:    len(counts),
		TotalResourceTypes: len(types),
		TopNamespaces:      append([]NamespaceSummary(nil), summaries[:n]...),
	}
	return stats, summaries
}
