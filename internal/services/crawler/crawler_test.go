package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/openfeeder/internal/common"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`, server.URL)
	})

	mux.HandleFunc("/sitemap-pages.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/page-one</loc></url>
  <url><loc>%s/page-two</loc></url>
</urlset>`, server.URL, server.URL)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><h1>Home</h1>
<a href="/page-one">One</a>
<a href="/page-three#section">Three</a>
<a href="/style.css">Style</a>
<a href="https://elsewhere.example.com/off-site">Off site</a>
</body></html>`)
	})

	mux.HandleFunc("/page-one", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Page one content.</p></body></html>`)
	})
	mux.HandleFunc("/page-two", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Page two content.</p></body></html>`)
	})
	mux.HandleFunc("/page-three", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Page three content.</p></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"not": "html"}`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCrawlWithSitemap(t *testing.T) {
	site := newTestSite(t)

	c := New(common.GetLogger())
	result := c.Crawl(context.Background(), site.URL, 10)

	require.NotEmpty(t, result.Pages)

	urls := make(map[string]bool)
	for _, p := range result.Pages {
		urls[p.URL] = true
	}

	// Root is fetched first, sitemap pages follow
	assert.Equal(t, site.URL, result.Pages[0].URL)
	assert.True(t, urls[site.URL+"/page-one"])
	assert.True(t, urls[site.URL+"/page-two"])

	// Discovered via link on the home page, fragment stripped
	assert.True(t, urls[site.URL+"/page-three"])

	for u := range urls {
		assert.NotContains(t, u, "elsewhere.example.com")
		assert.NotContains(t, u, ".css")
	}
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	site := newTestSite(t)

	c := New(common.GetLogger())
	result := c.Crawl(context.Background(), site.URL, 2)

	assert.Len(t, result.Pages, 2)
}

func TestCrawlRecordsErrorsWithoutAborting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/broken">broken</a><a href="/ok">ok</a></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Still fine.</p></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(common.GetLogger())
	result := c.Crawl(context.Background(), server.URL, 10)

	assert.NotEmpty(t, result.Errors)

	urls := make(map[string]bool)
	for _, p := range result.Pages {
		urls[p.URL] = true
	}
	assert.True(t, urls[server.URL+"/ok"])
	assert.False(t, urls[server.URL+"/broken"])
}

func TestCrawlSkipsNonHTML(t *testing.T) {
	site := newTestSite(t)

	c := New(common.GetLogger())
	_, _, err := c.fetchPage(context.Background(), site.URL+"/data.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTML")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/a/b/", "https://example.com/a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in))
	}
}
