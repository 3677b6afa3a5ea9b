package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// File extensions we never want to crawl
var skipExtensions = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|svg|webp|ico|pdf|zip|tar|gz|mp3|mp4|mov|avi|woff2?|ttf|eot|css|js)$`)

// NormalizeURL strips the fragment and the trailing slash (when the URL has
// a path beyond the root) so equivalent URLs deduplicate.
func NormalizeURL(raw string) string {
	if idx := strings.Index(raw, "#"); idx >= 0 {
		raw = raw[:idx]
	}
	if strings.HasSuffix(raw, "/") && strings.Count(raw, "/") > 3 {
		raw = strings.TrimRight(raw, "/")
	}
	return raw
}

func sameOrigin(base, candidate string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return b.Host == c.Host
}

// ExtractLinks returns the normalised same-origin links found in the page
func ExtractLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref).String()
		normalised := NormalizeURL(absolute)
		if sameOrigin(baseURL, normalised) && !skipExtensions.MatchString(normalised) {
			links = append(links, normalised)
		}
	})
	return links
}
