package interfaces

import "github.com/ternarybob/openfeeder/internal/models"

// ChunkMatch pairs a stored chunk with its cosine distance to a query vector
type ChunkMatch struct {
	Record   *models.ChunkRecord
	Distance float64
}

// VectorStore is the persistence boundary for chunks and page records.
// Query returns matches ordered by ascending cosine distance.
type VectorStore interface {
	UpsertChunks(chunks []*models.ChunkRecord) error
	DeleteChunks(url string) error
	ChunksForURL(url string, limit int) ([]*models.ChunkRecord, error)
	Query(vector []float32, k int, urlFilter string) ([]*ChunkMatch, error)

	UpsertPage(page *models.PageRecord) error
	GetPage(url string) (*models.PageRecord, error)
	DeletePage(url string) error
	AllPages() ([]*models.PageRecord, error)

	Close() error
}
