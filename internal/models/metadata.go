package models

import "encoding/json"

// Metadata type discriminators
const (
	MetaTypeRecipe  = "recipe"
	MetaTypeArticle = "article"
	MetaTypeProduct = "product"
	MetaTypeEvent   = "event"
	MetaTypePage    = "page"
)

// Metadata is the typed metadata record extracted from a page.
// Common fields are shared across variants; variant-specific fields
// (recipe ingredients, product price, event dates) live in Extra and
// are flattened to the top level when serialised.
type Metadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Published   string         `json:"published"`
	Modified    string         `json:"modified"`
	Keywords    []string       `json:"keywords"`
	Image       string         `json:"image"`
	Type        string         `json:"type"`
	SchemaType  string         `json:"schema_type"`
	Extra       map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level metadata object
func (m Metadata) MarshalJSON() ([]byte, error) {
	keywords := m.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	out := map[string]any{
		"title":       m.Title,
		"description": m.Description,
		"author":      m.Author,
		"published":   m.Published,
		"modified":    m.Modified,
		"keywords":    keywords,
		"image":       m.Image,
		"type":        m.Type,
		"schema_type": m.SchemaType,
	}
	for k, v := range m.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}
