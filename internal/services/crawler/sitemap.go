package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// fetchSitemap tries /sitemap.xml relative to siteURL and returns discovered
// page URLs. Sitemap index files are expanded recursively. Any failure is
// non-fatal and yields an empty list.
func (c *Crawler) fetchSitemap(ctx context.Context, siteURL string) []string {
	base, err := url.Parse(siteURL)
	if err != nil {
		return nil
	}
	ref, _ := url.Parse("/sitemap.xml")
	return c.expandSitemap(ctx, base.ResolveReference(ref).String(), 0)
}

func (c *Crawler) expandSitemap(ctx context.Context, sitemapURL string, depth int) []string {
	// Nested sitemap indexes can loop
	if depth > 5 {
		return nil
	}

	body, status, err := c.get(ctx, sitemapURL)
	if err != nil || status != http.StatusOK {
		c.logger.Debug().Str("url", sitemapURL).Msg("Sitemap fetch failed")
		return nil
	}

	var urls []string

	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil {
		for _, u := range set.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil {
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				urls = append(urls, c.expandSitemap(ctx, loc, depth+1)...)
			}
		}
	}

	return urls
}

func (c *Crawler) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
