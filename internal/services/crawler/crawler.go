package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const userAgent = "OpenFeeder/1.0 (sidecar crawler)"

// Page is one successfully fetched HTML document
type Page struct {
	URL    string
	HTML   string
	Status int
}

// Result carries the crawl output. Errors are advisory: a failed page never
// aborts the crawl.
type Result struct {
	Pages  []Page
	Errors []string
}

// Crawler walks a site breadth-first, seeded from sitemap.xml plus the root
type Crawler struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

func New(logger arbor.ILogger) *Crawler {
	return &Crawler{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(4), 8),
		logger:  logger,
	}
}

// Crawl fetches up to maxPages HTML pages from the site, breadth-first.
// The sitemap seeds the queue when available and the site root is always
// tried first. Only same-origin text/html pages are kept.
func (c *Crawler) Crawl(ctx context.Context, siteURL string, maxPages int) *Result {
	result := &Result{}

	queue := c.fetchSitemap(ctx, siteURL)
	c.logger.Info().Str("site", siteURL).Int("sitemap_urls", len(queue)).Msg("Starting crawl")

	root := NormalizeURL(siteURL)
	queue = append([]string{root}, queue...)

	visited := map[string]bool{}

	for len(queue) > 0 && len(result.Pages) < maxPages {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("crawl cancelled: %v", err))
			break
		}

		current := NormalizeURL(queue[0])
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		if err := c.limiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("crawl cancelled: %v", err))
			break
		}

		html, status, err := c.fetchPage(ctx, current)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", current, err))
			c.logger.Debug().Str("url", current).Err(err).Msg("Page fetch failed")
			continue
		}

		result.Pages = append(result.Pages, Page{URL: current, HTML: html, Status: status})

		// Keep discovering links while the visited set has headroom
		if len(visited) < maxPages*2 {
			for _, link := range ExtractLinks(html, current) {
				if !visited[link] {
					queue = append(queue, link)
				}
			}
		}
	}

	c.logger.Info().
		Int("pages", len(result.Pages)).
		Int("errors", len(result.Errors)).
		Msg("Crawl complete")

	return result
}

// fetchPage returns the page body when the response is an HTML document.
// The content type is checked before the status code so non-HTML error
// pages report the more useful content-type failure.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		return "", resp.StatusCode, fmt.Errorf("not HTML: %s", contentType)
	}
	if resp.StatusCode >= 400 {
		return "", resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}
