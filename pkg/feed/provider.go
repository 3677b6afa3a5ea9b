// Package feed embeds an OpenFeeder endpoint into an existing Go web
// application. The host application supplies its content through the
// Provider interface and the package serves the discovery and feed
// routes, including plain-text chunking and substring search. Sites
// that want crawling, embeddings, and diff sync run the full sidecar
// binary instead.
package feed

import "context"

// Item is a single piece of content exposed through the feed
type Item struct {
	URL       string
	Title     string
	Author    string
	Published string
	Updated   string
	Summary   string
	Body      string
}

// Provider supplies content to the feed handler
type Provider interface {
	// GetItems returns one page of items plus the total item count
	GetItems(ctx context.Context, page, limit int) ([]Item, int, error)

	// GetItem returns the item at a site-relative path, nil if unknown
	GetItem(ctx context.Context, path string) (*Item, error)
}

// Options configures the feed handler
type Options struct {
	SiteName    string
	SiteURL     string
	Language    string
	Description string
}
