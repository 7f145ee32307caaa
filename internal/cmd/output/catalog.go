package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/aliasmap"
	"github.com/agentstation/aliasmap/pkg/catalogs"
)

// AliasesToTableData converts aliases to table rows. Wide adds the default
// path and type columns.
func AliasesToTableData(aliases []catalogs.Alias, wide bool) Data {
	headers := []string{"Namespace", "Resource Type", "Alias"}
	if wide {
		headers = append(headers, "Default Path", "Type")
	}

	rows := make([][]string, 0, len(aliases))
	for _, a := range aliases {
		row := []string{a.Namespace, a.ResourceType, a.AliasName}
		if wide {
			row = append(row, deref(a.DefaultPath), deref(a.Type))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// NamespacesToTableData converts namespace counts to table rows.
func NamespacesToTableData(summaries []catalogs.NamespaceSummary) Data {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{s.Namespace, strconv.Itoa(s.Count)})
	}
	return Data{
		Headers:         []string{"Namespace", "Aliases"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// StatsToTableData renders cache statistics as property/value rows.
func StatsToTableData(stats aliasmap.Stats) Data {
	rows := [][]string{
		{"Total aliases", strconv.Itoa(stats.TotalAliases)},
		{"Total namespaces", strconv.Itoa(stats.TotalNamespaces)},
		{"Total resource types", strconv.Itoa(stats.TotalResourceTypes)},
		{"Cache valid", strconv.FormatBool(stats.CacheValid)},
	}
	if stats.BuiltAt != nil {
		rows = append(rows, []string{"Built at", stats.BuiltAt.UTC().Format(time.RFC3339)})
	}
	if stats.Providers != nil {
		p := stats.Providers
		rows = append(rows, []string{"Providers", fmt.Sprintf("%d of %d", p.Succeeded, p.Total)})
		if len(p.Failed) > 0 {
			rows = append(rows, []string{"Failed providers", strings.Join(p.Failed, ", ")})
		}
	}
	for i, ns := range stats.TopNamespaces {
		label := ""
		if i == 0 {
			label = "Top namespaces"
		}
		rows = append(rows, []string{label, fmt.Sprintf("%s (%d)", ns.Namespace, ns.Count)})
	}
	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
