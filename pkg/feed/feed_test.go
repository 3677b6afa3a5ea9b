package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	items []Item
}

func (p *staticProvider) GetItems(_ context.Context, page, limit int) ([]Item, int, error) {
	start := (page - 1) * limit
	if start >= len(p.items) {
		return nil, len(p.items), nil
	}
	end := start + limit
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[start:end], len(p.items), nil
}

func (p *staticProvider) GetItem(_ context.Context, path string) (*Item, error) {
	for i := range p.items {
		if p.items[i].URL == path {
			return &p.items[i], nil
		}
	}
	return nil, nil
}

func newTestHandler() *Handler {
	provider := &staticProvider{items: []Item{
		{
			URL:       "/blog/first",
			Title:     "First Post",
			Published: "2025-01-01T00:00:00Z",
			Updated:   "2025-01-02T00:00:00Z",
			Body: "Welcome to the blog.\n\nThis first post talks about gardening " +
				"and the joy of growing tomatoes in a small backyard plot.",
		},
		{
			URL:   "/blog/second",
			Title: "Second Post",
			Body:  "A short note.\n\n1. Prepare the soil\n2. Plant the seeds\n3. Water daily",
		},
	}}
	return NewHandler(provider, Options{
		SiteName: "Test Blog",
		SiteURL:  "https://blog.example.com",
		Language: "en",
	})
}

func doRequest(h *Handler, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSanitizeURLParam(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/blog/post", "/blog/post", false},
		{"/blog/post/", "/blog/post", false},
		{"blog/post", "/blog/post", false},
		{"https://blog.example.com/blog/post", "/blog/post", false},
		{"/", "/", false},
		{"", "/", false},
		{"/a/../b", "", true},
		{"..", "", true},
	}

	for _, tt := range tests {
		got, err := SanitizeURLParam(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestSanitizeURLParamIdempotent(t *testing.T) {
	first, err := SanitizeURLParam("https://blog.example.com/blog/post/")
	require.NoError(t, err)
	second, err := SanitizeURLParam(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDiscoveryAndETag(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/.well-known/openfeeder.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.0", rec.Header().Get("X-OpenFeeder"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "public, max-age=300, stale-while-revalidate=60", rec.Header().Get("Cache-Control"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// Identical content yields an identical ETag
	rec2 := doRequest(h, "/.well-known/openfeeder.json")
	assert.Equal(t, etag, rec2.Header().Get("ETag"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{"search"}, body["capabilities"].([]any))

	// Conditional request returns 304
	mux := http.NewServeMux()
	h.Register(mux)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/openfeeder.json", nil)
	req.Header.Set("If-None-Match", etag)
	rec3 := httptest.NewRecorder()
	mux.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusNotModified, rec3.Code)
}

func TestIndexListing(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/openfeeder")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "index", body["type"])
	assert.Equal(t, float64(1), body["total_pages"])
	assert.Len(t, body["items"].([]any), 2)
}

func TestFetchItem(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/openfeeder?url=/blog/first/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/blog/first", body["url"])
	assert.Equal(t, "First Post", body["title"])

	chunks := body["chunks"].([]any)
	require.Len(t, chunks, 2)
	first := chunks[0].(map[string]any)
	assert.Equal(t, "heading", first["type"])
	assert.Contains(t, first["id"], "_0")
}

func TestFetchUnknown(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/openfeeder?url=/blog/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestFetchTraversalRejected(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/openfeeder?url=/a/../b")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_URL", errObj["code"])
}

func TestSearch(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/openfeeder?q=tomatoes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/blog/first", body["url"])

	chunks := body["chunks"].([]any)
	require.NotEmpty(t, chunks)
	assert.Contains(t, strings.ToLower(chunks[0].(map[string]any)["text"].(string)), "tomatoes")
}

func TestSearchNoResults(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, "/openfeeder?q=submarine")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChunkTextTypes(t *testing.T) {
	body := "A Short Title\n\nThis is a longer paragraph that has more than fifteen words " +
		"in it so it will never be classified as a heading by the chunker.\n\n" +
		"1. First step\n2. Second step\n3. Third step"

	chunks := ChunkText("/post", body)
	require.Len(t, chunks, 3)
	assert.Equal(t, "heading", chunks[0].Type)
	assert.Equal(t, "paragraph", chunks[1].Type)
	assert.Equal(t, "list", chunks[2].Type)

	// IDs are stable and positional
	again := ChunkText("/post", body)
	assert.Equal(t, chunks[0].ID, again[0].ID)
	assert.Equal(t, chunks[1].ID, again[1].ID)
}

func TestChunkTextSplitsLongBlocks(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 1200))
	chunks := ChunkText("/post", long)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c.Text)), chunkWordLimit)
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello & goodbye", StripHTML("<p>Hello &amp; goodbye</p>"))
	assert.Equal(t, `say "hi"`, StripHTML("say &quot;hi&quot;"))
}

func TestSummarise(t *testing.T) {
	short := "Just a few words."
	assert.Equal(t, short, Summarise(short))

	long := strings.TrimSpace(strings.Repeat("word ", 60))
	summary := Summarise(long)
	assert.True(t, strings.HasSuffix(summary, "…"))
	assert.Len(t, strings.Fields(summary), 40)
}
