package arm

import "github.com/agentstation/aliasmap/pkg/catalogs"

type providerPage struct {
	Value    []provider `json:"value"`
	NextLink string     `json:"nextLink"`
}

type provider struct {
	Namespace     string         `json:"namespace"`
	ResourceTypes []resourceType `json:"resourceTypes"`
}

type resourceType struct {
	ResourceType string  `json:"resourceType"`
	Aliases      []alias `json:"aliases"`
}

type alias struct {
	Name           string   `json:"name"`
	DefaultPath    *string  `json:"defaultPath"`
	DefaultPattern *pattern `json:"defaultPattern"`
	Type           *string  `json:"type"`
}

type pattern struct {
	Phrase   string `json:"phrase"`
	Variable string `json:"variable"`
	Type     string `json:"type"`
}

func (p provider) aliases() []catalogs.Alias {
	out := make([]catalogs.Alias, 0)
	for _, rt := range p.ResourceTypes {
		for _, a := range rt.Aliases {
			item := catalogs.Alias{
				Namespace:    p.Namespace,
				ResourceType: rt.ResourceType,
				AliasName:    a.Name,
				DefaultPath:  a.DefaultPath,
				Type:         a.Type,
			}
			if a.DefaultPattern != nil {
				item.DefaultPattern = &catalogs.AliasPattern{
					Phrase:   a.DefaultPattern.Phrase,
					Variable: a.DefaultPattern.Variable,
					Type:     a.DefaultPattern.Type,
				}
			}
			out = append(out, item)
		}
	}
	return out
}
