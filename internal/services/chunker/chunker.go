package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/openfeeder/internal/models"
	"github.com/ternarybob/openfeeder/internal/services/metadata"
)

// Tags removed entirely (boilerplate / noise)
var stripTags = []string{"nav", "header", "footer", "aside", "script", "style", "ins", "iframe", "noscript"}

// Class or id substrings that indicate noise elements
var noiseRe = regexp.MustCompile(`(?i)(ad\b|ads\b|advert|banner|cookie|sidebar|menu|social|share|comment|popup|modal|newsletter|promo)`)

var noiseRoles = map[string]bool{
	"navigation":    true,
	"banner":        true,
	"complementary": true,
}

// Maximum characters per chunk before splitting at sentence boundaries
const maxChunkLen = 1500

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// ChunkHTML parses HTML and extracts clean, typed content chunks.
//
// Noise elements (ads, nav, boilerplate) are stripped, the main content
// area is located, and each content tag becomes a typed chunk. Recipe
// pages gain dedicated ingredient and instruction chunks from JSON-LD.
func ChunkHTML(url, html string) *models.ParsedPage {
	richMeta := metadata.Extract(html, url)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &models.ParsedPage{
			URL:      url,
			Title:    richMeta.Title,
			Author:   richMeta.Author,
			Language: "en",
			Updated:  time.Now().UTC().Format(time.RFC3339),
			Summary:  richMeta.Description,
			Metadata: richMeta,
		}
	}

	language := metadata.PageLanguage(doc)

	title := richMeta.Title
	if title == "" {
		if t := doc.Find("title").First(); t.Length() > 0 {
			title = cleanText(t.Text())
		}
		if h1 := doc.Find("h1").First(); h1.Length() > 0 {
			title = cleanText(h1.Text())
		}
	}

	author := richMeta.Author
	if author == "" {
		author, _ = doc.Find(`meta[name='author']`).First().Attr("content")
	}
	published := richMeta.Published
	if published == "" {
		published = fallbackPublished(doc)
	}

	removeNoise(doc)

	root := contentRoot(doc)

	chunks := emitChunks(root)

	chunks = augmentRecipe(richMeta, chunks)

	summary := buildSummary(chunks, richMeta.Description, title)

	return &models.ParsedPage{
		URL:       url,
		Title:     title,
		Author:    author,
		Published: published,
		Updated:   time.Now().UTC().Format(time.RFC3339),
		Language:  language,
		Summary:   summary,
		Chunks:    chunks,
		Metadata:  richMeta,
	}
}

func fallbackPublished(doc *goquery.Document) string {
	for _, attr := range []string{"article:published_time", "datePublished", "date"} {
		if content, ok := doc.Find(`meta[property='` + attr + `']`).First().Attr("content"); ok && content != "" {
			return content
		}
		if content, ok := doc.Find(`meta[name='` + attr + `']`).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return datetime
	}
	return ""
}

// removeNoise drops boilerplate subtrees and elements whose class, id, or
// role marks them as non-content.
func removeNoise(doc *goquery.Document) {
	doc.Find(strings.Join(stripTags, ", ")).Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		role, _ := s.Attr("role")
		if noiseRe.MatchString(class) || noiseRe.MatchString(id) || noiseRoles[role] {
			s.Remove()
		}
	})
}

// contentRoot prefers <main>, then <article>, then <body>, else the document
func contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"main", "article", "body"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Selection
}

// emitChunks walks the content root in document order, mapping tags to
// typed chunks with a 20-character floor and exact-text dedup.
func emitChunks(root *goquery.Selection) []models.Chunk {
	var chunks []models.Chunk
	seen := map[string]bool{}

	root.Find("*").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text == "" || len(text) < 20 || seen[text] {
			return
		}

		var chunkType string
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			chunkType = models.ChunkTypeHeading
		case "ul", "ol":
			chunkType = models.ChunkTypeList
		case "pre", "code":
			chunkType = models.ChunkTypeCode
		case "blockquote":
			chunkType = models.ChunkTypeQuote
		case "p":
			chunkType = models.ChunkTypeParagraph
		default:
			// li folds into its parent list; div/section/article/main are
			// containers whose children are emitted individually
			return
		}

		seen[text] = true

		if chunkType == models.ChunkTypeCode {
			// Preserve original whitespace for code
			raw := strings.TrimSpace(s.Text())
			if raw == "" {
				return
			}
			chunks = append(chunks, models.Chunk{Text: raw, Type: chunkType})
			return
		}

		chunks = append(chunks, splitLongText(text, chunkType)...)
	})

	return chunks
}

// splitLongText splits text exceeding maxChunkLen into multiple chunks at
// sentence boundaries, greedily packing sentences up to the cap.
func splitLongText(text, chunkType string) []models.Chunk {
	if len(text) <= maxChunkLen {
		return []models.Chunk{{Text: text, Type: chunkType}}
	}

	var chunks []models.Chunk
	current := ""
	for _, sentence := range splitSentences(text) {
		if current != "" && len(current)+len(sentence)+1 > maxChunkLen {
			chunks = append(chunks, models.Chunk{Text: strings.TrimSpace(current), Type: chunkType})
			current = ""
		}
		if current != "" {
			current += " "
		}
		current += sentence
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, models.Chunk{Text: strings.TrimSpace(current), Type: chunkType})
	}
	return chunks
}

// splitSentences splits text after `.`, `!`, or `?` followed by whitespace
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && isSpace(runes[i+1]) {
			sentences = append(sentences, string(runes[start:i+1]))
			i++
			for i < len(runes) && isSpace(runes[i]) {
				i++
			}
			start = i
			i--
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// augmentRecipe prepends dedicated ingredient and instruction chunks for
// recipe pages.
func augmentRecipe(meta *models.Metadata, chunks []models.Chunk) []models.Chunk {
	if meta == nil || meta.Type != models.MetaTypeRecipe {
		return chunks
	}

	var prefix []models.Chunk

	ingredients, _ := meta.Extra["ingredients"].([]string)
	if len(ingredients) > 0 {
		var b strings.Builder
		b.WriteString("Ingredients:")
		for _, ing := range ingredients {
			b.WriteString("\n- ")
			b.WriteString(ing)
		}
		prefix = append(prefix, models.Chunk{Text: b.String(), Type: models.ChunkTypeIngredients})
	}

	instructions, _ := meta.Extra["instructions"].([]string)
	if len(instructions) > 0 {
		var b strings.Builder
		b.WriteString("Instructions:")
		for i, step := range instructions {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, step))
		}
		prefix = append(prefix, models.Chunk{Text: b.String(), Type: models.ChunkTypeInstructions})
	}

	if len(prefix) == 0 {
		return chunks
	}
	return append(prefix, chunks...)
}

// buildSummary concatenates paragraph chunks until the total exceeds 300
// characters, truncates to 500, and falls back to description then title.
func buildSummary(chunks []models.Chunk, description, title string) string {
	var parts []string
	for _, c := range chunks {
		if c.Type == models.ChunkTypeParagraph {
			parts = append(parts, c.Text)
			if len(strings.Join(parts, " ")) > 300 {
				break
			}
		}
	}

	if len(parts) == 0 {
		if description != "" {
			return description
		}
		return title
	}

	return truncate(strings.Join(parts, " "), 500)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
