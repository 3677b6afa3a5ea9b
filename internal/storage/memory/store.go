package memory

import (
	"sort"
	"sync"

	"github.com/ternarybob/openfeeder/internal/interfaces"
	"github.com/ternarybob/openfeeder/internal/models"
	storage "github.com/ternarybob/openfeeder/internal/storage/badger"
)

// Store is an in-memory VectorStore used by tests and throwaway runs
type Store struct {
	mu     sync.RWMutex
	chunks map[string]*models.ChunkRecord
	pages  map[string]*models.PageRecord
}

func New() *Store {
	return &Store{
		chunks: make(map[string]*models.ChunkRecord),
		pages:  make(map[string]*models.PageRecord),
	}
}

func (s *Store) UpsertChunks(chunks []*models.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		copied := *chunk
		s.chunks[chunk.ID] = &copied
	}
	return nil
}

func (s *Store) DeleteChunks(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, chunk := range s.chunks {
		if chunk.URL == url {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *Store) ChunksForURL(url string, limit int) ([]*models.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.ChunkRecord
	for _, chunk := range s.chunks {
		if chunk.URL == url {
			copied := *chunk
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChunkIndex < result[j].ChunkIndex
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) Query(vector []float32, k int, urlFilter string) ([]*interfaces.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*interfaces.ChunkMatch
	for _, chunk := range s.chunks {
		if urlFilter != "" && chunk.URL != urlFilter {
			continue
		}
		copied := *chunk
		matches = append(matches, &interfaces.ChunkMatch{
			Record:   &copied,
			Distance: storage.CosineDistance(vector, chunk.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) UpsertPage(page *models.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *page
	s.pages[page.ID] = &copied
	return nil
}

func (s *Store) GetPage(url string) (*models.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, page := range s.pages {
		if page.URL == url {
			copied := *page
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) DeletePage(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, page := range s.pages {
		if page.URL == url {
			delete(s.pages, id)
		}
	}
	return nil
}

func (s *Store) AllPages() ([]*models.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*models.PageRecord, 0, len(s.pages))
	for _, page := range s.pages {
		copied := *page
		result = append(result, &copied)
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
