package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/openfeeder/internal/common"
	"github.com/ternarybob/openfeeder/internal/services/chunker"
	"github.com/ternarybob/openfeeder/internal/services/crawler"
	"github.com/ternarybob/openfeeder/internal/services/diffsync"
	"github.com/ternarybob/openfeeder/internal/services/indexer"
)

const updaterAgent = "OpenFeeder/1.0 (webhook updater)"

// Service coordinates scheduled crawls and webhook-driven updates
type Service struct {
	config     *common.Config
	crawler    *crawler.Crawler
	indexer    *indexer.Service
	tombstones *diffsync.TombstoneStore
	logger     arbor.ILogger

	scheduler *cron.Cron
	client    *http.Client

	mu           sync.Mutex
	crawlRunning bool
	lastCrawl    atomic.Int64
}

func NewService(
	config *common.Config,
	crawl *crawler.Crawler,
	index *indexer.Service,
	tombstones *diffsync.TombstoneStore,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:     config,
		crawler:    crawl,
		indexer:    index,
		tombstones: tombstones,
		logger:     logger,
		scheduler:  cron.New(),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Start schedules periodic crawls and kicks off the first one
func (s *Service) Start() error {
	spec := fmt.Sprintf("@every %ds", s.config.Crawl.Interval)
	if _, err := s.scheduler.AddFunc(spec, func() {
		if !s.TriggerCrawl() {
			s.logger.Debug().Msg("Scheduled crawl skipped, previous still running")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule crawl: %w", err)
	}
	s.scheduler.Start()

	s.TriggerCrawl()
	return nil
}

// Stop halts the scheduler without waiting for a running crawl
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// CrawlRunning reports whether a crawl is in progress
func (s *Service) CrawlRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crawlRunning
}

// LastCrawl returns the unix time of the last completed crawl, 0 if none
func (s *Service) LastCrawl() int64 {
	return s.lastCrawl.Load()
}

// TriggerCrawl starts a crawl in the background unless one is already
// running. Returns whether a new crawl was started.
func (s *Service) TriggerCrawl() bool {
	s.mu.Lock()
	if s.crawlRunning {
		s.mu.Unlock()
		return false
	}
	s.crawlRunning = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.crawlRunning = false
			s.mu.Unlock()
		}()
		s.runCrawl(context.Background())
	}()
	return true
}

func (s *Service) runCrawl(ctx context.Context) {
	started := time.Now()
	s.logger.Info().Str("site", s.config.Site.URL).Msg("Crawl starting")

	result := s.crawler.Crawl(ctx, s.config.Site.URL, s.config.Crawl.MaxPages)

	indexed := 0
	for _, page := range result.Pages {
		parsed := chunker.ChunkHTML(page.URL, page.HTML)
		if err := s.indexer.IngestPage(ctx, parsed); err != nil {
			s.logger.Warn().Str("url", page.URL).Err(err).Msg("Failed to index page")
			continue
		}
		indexed++
	}

	s.lastCrawl.Store(time.Now().Unix())
	s.logger.Info().
		Int("crawled", len(result.Pages)).
		Int("indexed", indexed).
		Int("errors", len(result.Errors)).
		Str("duration", time.Since(started).Round(time.Millisecond).String()).
		Msg("Crawl complete")
}

// ResolveURL turns a site-relative path into an absolute URL
func (s *Service) ResolveURL(raw string) string {
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return strings.TrimRight(s.config.Site.URL, "/") + "/" + strings.TrimLeft(raw, "/")
}

// ProcessUpdate applies a webhook batch. Failures are collected per URL
// and never abort the rest of the batch.
func (s *Service) ProcessUpdate(ctx context.Context, action string, urls []string) (int, []string) {
	processed := 0
	var errs []string

	for _, raw := range urls {
		fullURL := s.ResolveURL(raw)

		var err error
		switch action {
		case "upsert":
			err = s.upsertURL(ctx, fullURL)
		case "delete":
			err = s.deleteURL(fullURL)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", fullURL, err))
			s.logger.Warn().Str("url", fullURL).Str("action", action).Err(err).Msg("Update failed")
			continue
		}
		processed++
	}

	return processed, errs
}

func (s *Service) upsertURL(ctx context.Context, fullURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", updaterAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}

	parsed := chunker.ChunkHTML(fullURL, string(body))
	if err := s.indexer.IngestPage(ctx, parsed); err != nil {
		return err
	}

	// A re-indexed page is no longer deleted
	return s.tombstones.Remove(fullURL)
}

func (s *Service) deleteURL(fullURL string) error {
	if err := s.indexer.DeletePage(fullURL); err != nil {
		return err
	}
	return s.tombstones.Add(fullURL)
}
