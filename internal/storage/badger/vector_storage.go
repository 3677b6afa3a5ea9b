package badger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/openfeeder/internal/interfaces"
	"github.com/ternarybob/openfeeder/internal/models"
)

// UpsertChunks stores chunk records keyed by their content-derived IDs
func (s *Store) UpsertChunks(chunks []*models.ChunkRecord) error {
	for _, chunk := range chunks {
		if err := s.db.Upsert(chunk.ID, chunk); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// DeleteChunks removes every chunk belonging to a URL
func (s *Store) DeleteChunks(url string) error {
	err := s.db.DeleteMatching(&models.ChunkRecord{}, badgerhold.Where("URL").Eq(url).Index("URL"))
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete chunks for %s: %w", url, err)
	}
	return nil
}

// ChunksForURL returns a page's chunks, up to limit (0 for all)
func (s *Store) ChunksForURL(url string, limit int) ([]*models.ChunkRecord, error) {
	var chunks []*models.ChunkRecord
	query := badgerhold.Where("URL").Eq(url).Index("URL")
	if err := s.db.Find(&chunks, query); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load chunks for %s: %w", url, err)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// Query scans all chunks and returns the k nearest by cosine distance.
// With urlFilter set only that page's chunks are considered. Brute force
// is fine at sidecar scale: a few thousand chunks scan in milliseconds.
func (s *Store) Query(vector []float32, k int, urlFilter string) ([]*interfaces.ChunkMatch, error) {
	var chunks []*models.ChunkRecord
	var err error
	if urlFilter != "" {
		err = s.db.Find(&chunks, badgerhold.Where("URL").Eq(urlFilter).Index("URL"))
	} else {
		err = s.db.Find(&chunks, nil)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	matches := make([]*interfaces.ChunkMatch, 0, len(chunks))
	for _, chunk := range chunks {
		matches = append(matches, &interfaces.ChunkMatch{
			Record:   chunk,
			Distance: CosineDistance(vector, chunk.Embedding),
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

// UpsertPage stores a page-level record
func (s *Store) UpsertPage(page *models.PageRecord) error {
	if err := s.db.Upsert(page.ID, page); err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.URL, err)
	}
	return nil
}

// GetPage loads the page record for a URL, nil when absent
func (s *Store) GetPage(url string) (*models.PageRecord, error) {
	var pages []*models.PageRecord
	if err := s.db.Find(&pages, badgerhold.Where("URL").Eq(url).Index("URL")); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load page %s: %w", url, err)
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return pages[0], nil
}

// DeletePage removes the page record for a URL
func (s *Store) DeletePage(url string) error {
	err := s.db.DeleteMatching(&models.PageRecord{}, badgerhold.Where("URL").Eq(url).Index("URL"))
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete page %s: %w", url, err)
	}
	return nil
}

// AllPages returns every page record
func (s *Store) AllPages() ([]*models.PageRecord, error) {
	var pages []*models.PageRecord
	if err := s.db.Find(&pages, nil); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// CosineDistance is 1 minus cosine similarity; zero vectors are maximally far
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
