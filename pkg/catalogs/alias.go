// Package catalogs defines the alias catalog data model: aliases, the
// immutable snapshot a rebuild produces, its statistics, and queries.
package catalogs

import "strings"

// Alias maps a policy field path onto a resource field for one
// provider namespace and resource type.
type Alias struct {
	Namespace      string        `json:"namespace" yaml:"namespace"`
	ResourceType   string        `json:"resource_type" yaml:"resource_type"`
	AliasName      string        `json:"alias_name" yaml:"alias_name"`
	DefaultPath    *string       `json:"default_path" yaml:"default_path"`
	DefaultPattern *AliasPattern `json:"default_pattern" yaml:"default_pattern"`
	Type           *string       `json:"type" yaml:"type"`
}

// AliasPattern is the default pattern an alias resolves through.
type AliasPattern struct {
	Phrase   string `json:"phrase" yaml:"phrase"`
	Variable string `json:"variable" yaml:"variable"`
	Type     string `json:"type" yaml:"type"`
}

// NamespaceSummary is the alias count for one namespace.
type NamespaceSummary struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Count     int    `json:"count" yaml:"count"`
}

// Path returns the default path or an empty string.
func (a Alias) Path() string {
	if a.DefaultPath == nil {
		return ""
	}
	return *a.DefaultPath
}

// QualifiedType returns "namespace/resource_type".
func (a Alias) QualifiedType() string {
	return a.Namespace + "/" + a.ResourceType
}

// searchText is the haystack free-text terms are matched against.
func (a Alias) searchText() string {
	return strings.Join([]string{a.Namespace, a.ResourceType, a.AliasName, a.Path()}, " ")
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
