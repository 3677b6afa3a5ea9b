package models

// ChunkItem is the wire form of a chunk in fetch and search responses
type ChunkItem struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Type      string   `json:"type"`
	Relevance *float64 `json:"relevance"`
}

// PageItem is the wire form of a page in the paginated index
type PageItem struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Published *string `json:"published"`
	Summary   string  `json:"summary"`
}

// SyncItem is the wire form of an added or updated page in sync responses
type SyncItem struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Published *string `json:"published,omitempty"`
	IndexedAt string  `json:"indexed_at"`
}

// Tombstone records a deleted URL for differential sync
type Tombstone struct {
	URL       string `json:"url"`
	DeletedAt string `json:"deleted_at"`
}

// SearchResult is a single semantic search hit
type SearchResult struct {
	ChunkID   string
	Text      string
	ChunkType string
	Relevance float64
	URL       string
	Title     string
}

// UpdateRequest is the webhook request body
type UpdateRequest struct {
	Action string   `json:"action"`
	URLs   []string `json:"urls"`
}

// UpdateResponse is the webhook response body
type UpdateResponse struct {
	Status    string   `json:"status"`
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
}
