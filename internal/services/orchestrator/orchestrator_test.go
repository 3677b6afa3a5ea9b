package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/openfeeder/internal/common"
	"github.com/ternarybob/openfeeder/internal/services/crawler"
	"github.com/ternarybob/openfeeder/internal/services/diffsync"
	"github.com/ternarybob/openfeeder/internal/services/embeddings"
	"github.com/ternarybob/openfeeder/internal/services/indexer"
	"github.com/ternarybob/openfeeder/internal/storage/memory"
)

func newTestOrchestrator(t *testing.T, siteURL string) (*Service, *indexer.Service) {
	t.Helper()

	logger := common.GetLogger()
	config := common.NewDefaultConfig()
	config.Site.URL = siteURL

	tombstones, err := diffsync.NewTombstoneStore(filepath.Join(t.TempDir(), "tombstones.json"))
	require.NoError(t, err)

	index := indexer.NewService(memory.New(), embeddings.NewLocalEmbedder(""), logger)
	svc := NewService(config, crawler.New(logger), index, tombstones, logger)
	return svc, index
}

func TestResolveURL(t *testing.T) {
	svc, _ := newTestOrchestrator(t, "https://example.com/")

	assert.Equal(t, "https://example.com/blog/post", svc.ResolveURL("/blog/post"))
	assert.Equal(t, "https://example.com/blog/post", svc.ResolveURL("blog/post"))
	assert.Equal(t, "https://other.example.com/x", svc.ResolveURL("https://other.example.com/x"))
}

func TestProcessUpdateUpsertAndDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html lang="en"><head><title>Updated Post</title></head>
<body><main><p>Fresh content pushed through the update webhook endpoint.</p></main></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc, index := newTestOrchestrator(t, server.URL)
	ctx := context.Background()

	processed, errs := svc.ProcessUpdate(ctx, "upsert", []string{"/post"})
	assert.Equal(t, 1, processed)
	assert.Empty(t, errs)

	meta, err := index.PageMeta(server.URL + "/post")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Updated Post", meta.Title)

	processed, errs = svc.ProcessUpdate(ctx, "delete", []string{"/post"})
	assert.Equal(t, 1, processed)
	assert.Empty(t, errs)

	meta, err = index.PageMeta(server.URL + "/post")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestProcessUpdateCollectsErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Good Page</title></head>
<body><p>This page exists and indexes without any trouble.</p></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc, _ := newTestOrchestrator(t, server.URL)

	processed, errs := svc.ProcessUpdate(context.Background(), "upsert", []string{"/missing", "/good"})
	assert.Equal(t, 1, processed)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "HTTP 404")
}

func TestTriggerCrawlRefusesConcurrent(t *testing.T) {
	svc, _ := newTestOrchestrator(t, "https://example.com")

	svc.mu.Lock()
	svc.crawlRunning = true
	svc.mu.Unlock()

	assert.False(t, svc.TriggerCrawl())
	assert.True(t, svc.CrawlRunning())
}

func TestLastCrawlInitiallyZero(t *testing.T) {
	svc, _ := newTestOrchestrator(t, "https://example.com")
	assert.Zero(t, svc.LastCrawl())
}
