package indexer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/openfeeder/internal/interfaces"
	"github.com/ternarybob/openfeeder/internal/models"
)

// Search never considers more than this many candidate chunks
const maxSearchResults = 50

const summaryLimit = 500

// Service turns parsed pages into embedded, searchable records
type Service struct {
	store    interfaces.VectorStore
	embedder interfaces.EmbeddingService
	logger   arbor.ILogger

	// Per-URL locks keep a page's chunk set and page record consistent
	// under concurrent ingest and delete.
	urlLocks sync.Map
}

func NewService(store interfaces.VectorStore, embedder interfaces.EmbeddingService, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

func (s *Service) lockURL(url string) *sync.Mutex {
	lock, _ := s.urlLocks.LoadOrStore(url, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// IngestPage embeds a parsed page and replaces its records in the store.
// A page that yields no chunks has its chunks cleared but keeps its page
// record.
func (s *Service) IngestPage(ctx context.Context, page *models.ParsedPage) error {
	lock := s.lockURL(page.URL)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	firstIndexed := now
	if existing, err := s.store.GetPage(page.URL); err != nil {
		return err
	} else if existing != nil && !existing.FirstIndexedAt.IsZero() {
		firstIndexed = existing.FirstIndexedAt
	}

	if err := s.store.DeleteChunks(page.URL); err != nil {
		return err
	}

	// Stale chunks are already gone; the page record is left as-is so a
	// transiently empty parse does not erase the page's last known state.
	if len(page.Chunks) == 0 {
		s.logger.Warn().Str("url", page.URL).Msg("Page produced no chunks, skipping")
		return nil
	}

	texts := make([]string, len(page.Chunks))
	for i, c := range page.Chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", page.URL, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding mismatch for %s: %d texts, %d vectors", page.URL, len(texts), len(vectors))
	}

	records := make([]*models.ChunkRecord, len(page.Chunks))
	for i, c := range page.Chunks {
		records[i] = &models.ChunkRecord{
			ID:         ChunkID(page.URL, i),
			URL:        page.URL,
			Title:      page.Title,
			Author:     page.Author,
			Published:  page.Published,
			Updated:    page.Updated,
			Language:   page.Language,
			Summary:    page.Summary,
			ChunkType:  c.Type,
			ChunkIndex: i,
			Text:       c.Text,
			Embedding:  vectors[i],
			IndexedAt:  now,
		}
	}
	if err := s.store.UpsertChunks(records); err != nil {
		return err
	}

	pageRecord := &models.PageRecord{
		ID:             PageID(page.URL),
		URL:            page.URL,
		Title:          page.Title,
		Author:         page.Author,
		Published:      page.Published,
		Updated:        page.Updated,
		Language:       page.Language,
		Summary:        truncate(page.Summary, summaryLimit),
		ChunkCount:     len(records),
		Embedding:      vectors[0],
		FirstIndexedAt: firstIndexed,
		IndexedAt:      now,
	}
	if err := s.store.UpsertPage(pageRecord); err != nil {
		return err
	}

	s.logger.Debug().Str("url", page.URL).Int("chunks", len(records)).Msg("Page indexed")
	return nil
}

// IngestPages indexes a batch, collecting per-page errors
func (s *Service) IngestPages(ctx context.Context, pages []*models.ParsedPage) (int, []string) {
	processed := 0
	var errs []string
	for _, page := range pages {
		if err := s.IngestPage(ctx, page); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", page.URL, err))
			continue
		}
		processed++
	}
	return processed, errs
}

// DeletePage removes a page and its chunks
func (s *Service) DeletePage(url string) error {
	lock := s.lockURL(url)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.DeleteChunks(url); err != nil {
		return err
	}
	return s.store.DeletePage(url)
}

// Search embeds the query and returns the closest chunks, optionally
// restricted to one page.
func (s *Service) Search(ctx context.Context, query string, limit int, urlFilter string) ([]models.SearchResult, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	k := limit
	if k <= 0 || k > maxSearchResults {
		k = maxSearchResults
	}

	matches, err := s.store.Query(vectors[0], k, urlFilter)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			ChunkID:   m.Record.ID,
			Text:      m.Record.Text,
			ChunkType: m.Record.ChunkType,
			Relevance: relevance(m.Distance),
			URL:       m.Record.URL,
			Title:     m.Record.Title,
		})
	}
	return results, nil
}

// relevance maps cosine distance to a similarity score in [0, 1]
func relevance(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		score = 0
	}
	return math.Round(score*10000) / 10000
}

// ChunksForURL returns a page's chunks in document order
func (s *Service) ChunksForURL(url string, limit int) ([]*models.ChunkRecord, error) {
	lock := s.lockURL(url)
	lock.Lock()
	defer lock.Unlock()

	return s.store.ChunksForURL(url, limit)
}

// PageMeta returns the page record for a URL, nil when not indexed
func (s *Service) PageMeta(url string) (*models.PageRecord, error) {
	return s.store.GetPage(url)
}

// AllPages lists indexed pages newest-published first, paginated
func (s *Service) AllPages(page, limit int) ([]models.PageItem, int, error) {
	pages, err := s.store.AllPages()
	if err != nil {
		return nil, 0, err
	}

	total := len(pages)
	if total > 1000 {
		s.logger.Warn().Int("pages", total).Msg("Large index, listing may be slow")
	}

	// Newest published first; pages without a date sink to the end
	sort.Slice(pages, func(i, j int) bool {
		pi, pj := pages[i].Published, pages[j].Published
		if (pi == "") != (pj == "") {
			return pi != ""
		}
		if pi != pj {
			return pi > pj
		}
		return pages[i].URL < pages[j].URL
	})

	start := (page - 1) * limit
	if start >= total {
		return []models.PageItem{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	items := make([]models.PageItem, 0, end-start)
	for _, p := range pages[start:end] {
		items = append(items, models.PageItem{
			URL:       p.URL,
			Title:     p.Title,
			Published: optional(p.Published),
			Summary:   p.Summary,
		})
	}
	return items, total, nil
}

// PagesInRange partitions pages indexed inside the window into pages first
// seen after the cutoff (added) and previously known pages (updated).
func (s *Service) PagesInRange(since, until *time.Time) (added, updated []models.SyncItem, err error) {
	pages, err := s.store.AllPages()
	if err != nil {
		return nil, nil, err
	}

	for _, p := range pages {
		if since != nil && p.IndexedAt.Before(*since) {
			continue
		}
		if until != nil && p.IndexedAt.After(*until) {
			continue
		}

		item := models.SyncItem{
			URL:       p.URL,
			Title:     p.Title,
			Summary:   p.Summary,
			Published: optional(p.Published),
			IndexedAt: p.IndexedAt.UTC().Format(time.RFC3339),
		}
		if since != nil && !p.FirstIndexedAt.Before(*since) {
			added = append(added, item)
		} else {
			updated = append(updated, item)
		}
	}

	sort.Slice(added, func(i, j int) bool { return added[i].URL < added[j].URL })
	sort.Slice(updated, func(i, j int) bool { return updated[i].URL < updated[j].URL })
	return added, updated, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
