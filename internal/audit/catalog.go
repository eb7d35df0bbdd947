package audit

import "slices"

// Module is one selectable analysis service.
type Module struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []Module{
	{ID: "1", Category: "Content Optimization", Name: "Semantic Title Engine", Description: "LLM-driven headline generation"},
	{ID: "2", Category: "Content Optimization", Name: "Predictive CTR Analysis", Description: "Thumbnail saliency mapping"},
	{ID: "3", Category: "Content Optimization", Name: "Multi-Platform Mastery", Description: "Cross-platform algorithm alignment"},
	{ID: "7", Category: "Legal & Compliance", Name: "Copyright Protection", Description: "Content ID scanning pre-upload"},
	{ID: "8", Category: "Legal & Compliance", Name: "Fair Use Analysis", Description: "Transformative content assessment"},
	{ID: "10", Category: "Strategic Intelligence", Name: "Trend Intelligence", Description: "48-hour early trend detection"},
}

// Catalog returns the available modules in display order.
func Catalog() []Module {
	return slices.Clone(catalog)
}

// LookupModule returns the module with the given ID.
func LookupModule(id string) (Module, bool) {
	i := slices.IndexFunc(catalog, func(m Module) bool { return m.ID == id })
	if i < 0 {
		return Module{}, false
	}
	return catalog[i], true
}

// ModuleName returns the display name for id, or id itself when unknown.
func ModuleName(id string) string {
	if m, ok := LookupModule(id); ok {
		return m.Name
	}
	return id
}
