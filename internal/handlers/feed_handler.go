package handlers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/openfeeder/internal/common"
	"github.com/ternarybob/openfeeder/internal/models"
	"github.com/ternarybob/openfeeder/internal/services/analytics"
	"github.com/ternarybob/openfeeder/internal/services/diffsync"
	"github.com/ternarybob/openfeeder/internal/services/indexer"
	"github.com/ternarybob/openfeeder/internal/services/orchestrator"
)

const (
	schemaVersion = "openfeeder/1.0"

	defaultLimit = 10
	maxLimit     = 50

	// Batches larger than this are processed in the background
	inlineUpdateLimit = 10
)

// FeedHandler serves the feed endpoints: discovery, content, webhook
// updates, manual crawl trigger, and health.
type FeedHandler struct {
	config       *common.Config
	indexer      *indexer.Service
	orchestrator *orchestrator.Service
	tombstones   *diffsync.TombstoneStore
	tracker      *analytics.Tracker
	logger       arbor.ILogger
}

func NewFeedHandler(
	config *common.Config,
	index *indexer.Service,
	orch *orchestrator.Service,
	tombstones *diffsync.TombstoneStore,
	tracker *analytics.Tracker,
	logger arbor.ILogger,
) *FeedHandler {
	return &FeedHandler{
		config:       config,
		indexer:      index,
		orchestrator: orch,
		tombstones:   tombstones,
		tracker:      tracker,
		logger:       logger,
	}
}

type discoveryDoc struct {
	Version string `json:"version"`
	Site    struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		Language    string `json:"language"`
		Description string `json:"description"`
	} `json:"site"`
	Feed struct {
		Endpoint string `json:"endpoint"`
		Type     string `json:"type"`
	} `json:"feed"`
	Capabilities []string `json:"capabilities"`
	Contact      *string  `json:"contact"`
}

// Discovery serves the well-known descriptor with a short-lived cache
func (h *FeedHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	var doc discoveryDoc
	doc.Version = "1.0"
	doc.Site.Name = h.config.Site.Name()
	doc.Site.URL = h.config.Site.URL
	doc.Site.Language = h.config.Site.Lang
	doc.Site.Description = h.config.Site.Description
	doc.Feed.Endpoint = "/openfeeder"
	doc.Feed.Type = "paginated"
	doc.Capabilities = []string{"search", "embeddings", "diff-sync"}

	body, err := json.Marshal(doc)
	if err != nil {
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to build discovery document")
		return
	}

	sum := md5.Sum(body)
	etag := `"` + hex.EncodeToString(sum[:])[:16] + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300, stale-while-revalidate=60")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// Content dispatches the feed endpoint across its four modes: diff sync,
// semantic search, single-page fetch, and the paginated index.
func (h *FeedHandler) Content(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	pageURL := strings.TrimSpace(query.Get("url"))
	sinceRaw := strings.TrimSpace(query.Get("since"))
	untilRaw := strings.TrimSpace(query.Get("until"))

	page := parseIntParam(query.Get("page"), 1, 1, 0)
	limit := parseIntParam(query.Get("limit"), defaultLimit, 1, maxLimit)
	minScore := parseFloatParam(query.Get("min_score"), 0, 0, 1)

	if strings.Contains(pageURL, "..") {
		WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidURL, "url must not contain path traversal")
		return
	}

	var since, until *time.Time
	if sinceRaw != "" {
		t, ok := diffsync.ParseSince(sinceRaw)
		if !ok {
			WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidParam, "since is not a timestamp or sync token")
			return
		}
		since = &t
	}
	if untilRaw != "" {
		t, ok := diffsync.ParseSince(untilRaw)
		if !ok {
			WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidParam, "until is not a timestamp or sync token")
			return
		}
		until = &t
	}
	if since != nil && until != nil && until.Before(*since) {
		WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidParam, "until must not be before since")
		return
	}

	var mode string
	var results int

	switch {
	case (since != nil || until != nil) && q == "":
		mode = "sync"
		results = h.serveSync(w, since, until)
	case q != "":
		mode = "search"
		results = h.serveSearch(w, r, q, limit, minScore, pageURL)
	case pageURL != "":
		mode = "fetch"
		results = h.serveFetch(w, pageURL, limit)
	default:
		mode = "index"
		results = h.serveIndex(w, page, limit)
	}

	botName, botFamily := analytics.DetectBot(r.UserAgent())
	h.tracker.Track(analytics.Event{
		BotName:    botName,
		BotFamily:  botFamily,
		Endpoint:   r.URL.Path,
		Query:      q,
		Intent:     mode,
		Results:    results,
		Cached:     h.orchestrator.LastCrawl() > 0,
		ResponseMS: time.Since(started).Milliseconds(),
	})
}

func (h *FeedHandler) serveSync(w http.ResponseWriter, since, until *time.Time) int {
	added, updated, err := h.indexer.PagesInRange(since, until)
	if err != nil {
		h.logger.Error().Err(err).Msg("Sync listing failed")
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "sync listing failed")
		return 0
	}
	if added == nil {
		added = []models.SyncItem{}
	}
	if updated == nil {
		updated = []models.SyncItem{}
	}

	// Deletions are only reported against a known client cutoff
	deleted := []models.Tombstone{}
	if since != nil {
		if stones := h.tombstones.Since(*since); stones != nil {
			deleted = stones
		}
	}

	asOf := time.Now().UTC()
	sync := map[string]interface{}{
		"as_of":      asOf.Format(time.RFC3339),
		"sync_token": diffsync.EncodeToken(asOf),
		"counts": map[string]int{
			"added":   len(added),
			"updated": len(updated),
			"deleted": len(deleted),
		},
	}
	if since != nil {
		sync["since"] = since.UTC().Format(time.RFC3339)
	}
	if until != nil {
		sync["until"] = until.UTC().Format(time.RFC3339)
	}

	// Sync responses are always computed fresh
	w.Header().Set("X-OpenFeeder-Cache", "MISS")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"openfeeder_version": "1.0",
		"sync":               sync,
		"added":              added,
		"updated":            updated,
		"deleted":            deleted,
	})
	return len(added) + len(updated) + len(deleted)
}

func (h *FeedHandler) serveSearch(w http.ResponseWriter, r *http.Request, q string, limit int, minScore float64, urlFilter string) int {
	fullURL := ""
	if urlFilter != "" {
		fullURL = h.orchestrator.ResolveURL(urlFilter)
	}

	hits, err := h.indexer.Search(r.Context(), q, limit, fullURL)
	if err != nil {
		h.logger.Error().Err(err).Str("query", q).Msg("Search failed")
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "search failed")
		return 0
	}

	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Relevance >= minScore {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) == 0 {
		WriteFeedError(w, http.StatusNotFound, ErrCodeNotFound, "no results for query")
		return 0
	}

	first := filtered[0]
	meta, err := h.indexer.PageMeta(first.URL)
	if err != nil {
		h.logger.Error().Err(err).Str("url", first.URL).Msg("Page lookup failed")
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "page lookup failed")
		return 0
	}

	chunks := make([]models.ChunkItem, 0, len(filtered))
	for _, hit := range filtered {
		score := hit.Relevance
		chunks = append(chunks, models.ChunkItem{
			ID:        hit.ChunkID,
			Text:      hit.Text,
			Type:      hit.ChunkType,
			Relevance: &score,
		})
	}

	h.setCacheHeader(w)
	WriteJSON(w, http.StatusOK, h.pageResponse(first.URL, meta, chunks, len(chunks)))
	return len(chunks)
}

func (h *FeedHandler) serveFetch(w http.ResponseWriter, pageURL string, limit int) int {
	fullURL := h.orchestrator.ResolveURL(pageURL)

	meta, err := h.indexer.PageMeta(fullURL)
	if err != nil {
		h.logger.Error().Err(err).Str("url", fullURL).Msg("Page lookup failed")
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "page lookup failed")
		return 0
	}
	if meta == nil {
		WriteFeedError(w, http.StatusNotFound, ErrCodeNotFound, "page not indexed: "+fullURL)
		return 0
	}

	records, err := h.indexer.ChunksForURL(fullURL, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("url", fullURL).Msg("Chunk listing failed")
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "chunk listing failed")
		return 0
	}

	chunks := make([]models.ChunkItem, 0, len(records))
	for _, rec := range records {
		chunks = append(chunks, models.ChunkItem{
			ID:   rec.ID,
			Text: rec.Text,
			Type: rec.ChunkType,
		})
	}

	h.setCacheHeader(w)
	WriteJSON(w, http.StatusOK, h.pageResponse(fullURL, meta, chunks, meta.ChunkCount))
	return len(chunks)
}

func (h *FeedHandler) serveIndex(w http.ResponseWriter, page, limit int) int {
	items, total, err := h.indexer.AllPages(page, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Index listing failed")
		WriteFeedError(w, http.StatusInternalServerError, ErrCodeInternalError, "index listing failed")
		return 0
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	h.setCacheHeader(w)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"schema":      schemaVersion,
		"type":        "index",
		"page":        page,
		"total_pages": totalPages,
		"items":       items,
	})
	return len(items)
}

// pageResponse builds the single-page body shared by search and fetch.
// totalChunks is mode-dependent: search reports the returned hit count,
// fetch reports the page's stored chunk count.
func (h *FeedHandler) pageResponse(url string, meta *models.PageRecord, chunks []models.ChunkItem, totalChunks int) map[string]interface{} {
	language := h.config.Site.Lang
	summary := ""
	title := ""
	var author, published, updated *string

	if meta != nil {
		title = meta.Title
		summary = meta.Summary
		if meta.Language != "" {
			language = meta.Language
		}
		author = optional(meta.Author)
		published = optional(meta.Published)
		updated = optional(meta.Updated)
	}

	cached := h.orchestrator.LastCrawl() > 0
	cacheAge := int64(0)
	if cached {
		cacheAge = time.Now().Unix() - h.orchestrator.LastCrawl()
	}

	return map[string]interface{}{
		"schema":    schemaVersion,
		"url":       url,
		"title":     title,
		"author":    author,
		"published": published,
		"updated":   updated,
		"language":  language,
		"summary":   summary,
		"chunks":    chunks,
		"meta": map[string]interface{}{
			"total_chunks":      totalChunks,
			"returned_chunks":   len(chunks),
			"cached":            cached,
			"cache_age_seconds": cacheAge,
		},
	}
}

func (h *FeedHandler) setCacheHeader(w http.ResponseWriter) {
	if h.orchestrator.LastCrawl() > 0 {
		w.Header().Set("X-OpenFeeder-Cache", "HIT")
	} else {
		w.Header().Set("X-OpenFeeder-Cache", "MISS")
	}
}

// Update applies webhook-driven page changes. Small batches run inline,
// large ones are queued to the background.
func (h *FeedHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.config.Webhook.Secret != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != h.config.Webhook.Secret {
			WriteJSON(w, http.StatusForbidden, map[string]string{"error": "invalid token"})
			return
		}
	}

	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidParam, "invalid JSON body")
		return
	}
	if req.Action != "upsert" && req.Action != "delete" {
		WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidParam, "action must be upsert or delete")
		return
	}
	if len(req.URLs) == 0 {
		WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidParam, "urls must not be empty")
		return
	}
	for _, u := range req.URLs {
		if strings.Contains(u, "..") {
			WriteFeedError(w, http.StatusBadRequest, ErrCodeInvalidURL, "url must not contain path traversal")
			return
		}
	}

	if len(req.URLs) > inlineUpdateLimit {
		go func(action string, urls []string) {
			processed, errs := h.orchestrator.ProcessUpdate(context.Background(), action, urls)
			h.logger.Info().
				Str("action", action).
				Int("processed", processed).
				Int("errors", len(errs)).
				Msg("Background update complete")
		}(req.Action, req.URLs)

		WriteJSON(w, http.StatusOK, models.UpdateResponse{
			Status:    "queued",
			Processed: 0,
			Errors:    []string{},
		})
		return
	}

	processed, errs := h.orchestrator.ProcessUpdate(r.Context(), req.Action, req.URLs)
	if errs == nil {
		errs = []string{}
	}
	WriteJSON(w, http.StatusOK, models.UpdateResponse{
		Status:    "ok",
		Processed: processed,
		Errors:    errs,
	})
}

// Crawl triggers a full re-crawl unless one is already running
func (h *FeedHandler) Crawl(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator.TriggerCrawl() {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "crawl_started",
			"message": "Crawl started in background",
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "already_running",
		"message": "A crawl is already in progress",
	})
}

// Health reports service liveness and crawl state
func (h *FeedHandler) Health(w http.ResponseWriter, r *http.Request) {
	var lastCrawl interface{}
	if ts := h.orchestrator.LastCrawl(); ts > 0 {
		lastCrawl = ts
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"crawl_running": h.orchestrator.CrawlRunning(),
		"last_crawl":    lastCrawl,
	})
}

func parseIntParam(raw string, fallback, min, max int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if v < min {
		return fallback
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func parseFloatParam(raw string, fallback, min, max float64) float64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	if v < min || v > max {
		return fallback
	}
	return v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
