package feed

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	schemaVersion = "openfeeder/1.0"

	defaultLimit = 10
	maxLimit     = 100

	rateLimitPerMinute = 60
)

// Handler serves the embedded feed endpoints from a Provider
type Handler struct {
	provider Provider
	opts     Options
}

func NewHandler(provider Provider, opts Options) *Handler {
	return &Handler{provider: provider, opts: opts}
}

// Register mounts the feed routes on a mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /.well-known/openfeeder.json", h.Discovery)
	mux.HandleFunc("GET /openfeeder", h.Content)
}

// SanitizeURLParam reduces a url parameter to a safe site-relative path.
// Absolute URLs lose their scheme and host, trailing slashes are dropped
// except on the root, and traversal sequences are rejected.
func SanitizeURLParam(raw string) (string, error) {
	if strings.Contains(raw, "..") {
		return "", fmt.Errorf("url must not contain path traversal")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url")
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return path, nil
}

func (h *Handler) Discovery(w http.ResponseWriter, r *http.Request) {
	doc := map[string]interface{}{
		"version": "1.0",
		"site": map[string]string{
			"name":        h.opts.SiteName,
			"url":         h.opts.SiteURL,
			"language":    h.opts.Language,
			"description": h.opts.Description,
		},
		"feed": map[string]string{
			"endpoint": "/openfeeder",
			"type":     "paginated",
		},
		"capabilities": []string{"search"},
		"contact":      nil,
	}
	h.writeCached(w, r, http.StatusOK, doc, "")
}

func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	rawURL := strings.TrimSpace(query.Get("url"))

	page := parseInt(query.Get("page"), 1, 1, 0)
	limit := parseInt(query.Get("limit"), defaultLimit, 1, maxLimit)

	switch {
	case q != "":
		h.serveSearch(w, r, q, limit)
	case rawURL != "":
		h.serveFetch(w, r, rawURL)
	default:
		h.serveIndex(w, r, page, limit)
	}
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request, page, limit int) {
	items, total, err := h.provider.GetItems(r.Context(), page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list items")
		return
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	wire := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		wire = append(wire, map[string]interface{}{
			"url":       item.URL,
			"title":     item.Title,
			"published": nullable(item.Published),
			"summary":   item.Summary,
		})
	}

	h.writeCached(w, r, http.StatusOK, map[string]interface{}{
		"schema":      schemaVersion,
		"type":        "index",
		"page":        page,
		"total_pages": totalPages,
		"items":       wire,
	}, "")
}

func (h *Handler) serveFetch(w http.ResponseWriter, r *http.Request, rawURL string) {
	path, err := SanitizeURLParam(rawURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
		return
	}

	item, err := h.provider.GetItem(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no content at "+path)
		return
	}

	h.writeCached(w, r, http.StatusOK, h.itemResponse(item, ChunkText(item.URL, item.Body)), item.Updated)
}

// serveSearch does a case-insensitive substring scan across all items,
// returning the chunks of the first matching item.
func (h *Handler) serveSearch(w http.ResponseWriter, r *http.Request, q string, limit int) {
	needle := strings.ToLower(q)

	page := 1
	for {
		items, total, err := h.provider.GetItems(r.Context(), page, maxLimit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "search failed")
			return
		}

		for i := range items {
			item := &items[i]
			if !strings.Contains(strings.ToLower(item.Title), needle) &&
				!strings.Contains(strings.ToLower(item.Body), needle) {
				continue
			}

			chunks := ChunkText(item.URL, item.Body)
			matched := make([]Chunk, 0, len(chunks))
			for _, c := range chunks {
				if strings.Contains(strings.ToLower(c.Text), needle) {
					matched = append(matched, c)
				}
				if len(matched) >= limit {
					break
				}
			}
			if len(matched) == 0 && len(chunks) > 0 {
				matched = chunks[:1]
			}

			h.writeCached(w, r, http.StatusOK, h.itemResponse(item, matched), item.Updated)
			return
		}

		if page*maxLimit >= total || len(items) == 0 {
			break
		}
		page++
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "no results for query")
}

func (h *Handler) itemResponse(item *Item, chunks []Chunk) map[string]interface{} {
	summary := item.Summary
	if summary == "" {
		summary = Summarise(item.Body)
	}
	return map[string]interface{}{
		"schema":    schemaVersion,
		"url":       item.URL,
		"title":     item.Title,
		"author":    nullable(item.Author),
		"published": nullable(item.Published),
		"updated":   nullable(item.Updated),
		"language":  h.opts.Language,
		"summary":   summary,
		"chunks":    chunks,
		"meta": map[string]interface{}{
			"total_chunks":    len(chunks),
			"returned_chunks": len(chunks),
		},
	}
}

// writeCached writes JSON with an ETag derived from the body, honouring
// If-None-Match, plus advisory rate limit headers.
func (h *Handler) writeCached(w http.ResponseWriter, r *http.Request, status int, data interface{}, lastModified string) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to encode response")
		return
	}

	sum := md5.Sum(body)
	etag := `"` + hex.EncodeToString(sum[:])[:16] + `"`

	w.Header().Set("X-OpenFeeder", "1.0")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=300, stale-while-revalidate=60")
	w.Header().Set("ETag", etag)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rateLimitPerMinute))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateLimitPerMinute))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
	if lastModified != "" {
		if t, err := time.Parse(time.RFC3339, lastModified); err == nil {
			w.Header().Set("Last-Modified", t.UTC().Format(http.TimeFormat))
		}
	}

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-OpenFeeder", "1.0")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"schema": schemaVersion,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func parseInt(raw string, fallback, min, max int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
