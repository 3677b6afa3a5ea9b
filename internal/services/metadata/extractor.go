package metadata

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/openfeeder/internal/models"
)

// Matches <script type="application/ld+json"> blocks, tolerating either
// quote style on the type attribute.
var jsonldRe = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*['"]application/ld\+json['"][^>]*>(.*?)</script>`)

// Candidate selection order when a page carries several JSON-LD objects
var typePriority = []string{"Recipe", "NewsArticle", "Article", "BlogPosting", "Product", "Event"}

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Extract pulls structured metadata from HTML using a strict priority ladder:
// JSON-LD first, then OpenGraph / Twitter Cards, then plain HTML fallbacks.
func Extract(html, url string) *models.Metadata {
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))

	if ld := extractJSONLD(html); ld != nil {
		meta := mapByType(ld)
		if docErr == nil {
			if og := extractOpenGraph(doc); og != nil {
				fillBlanks(meta, og, true)
			}
		}
		return meta
	}

	if docErr != nil {
		return &models.Metadata{Type: models.MetaTypePage, Extra: map[string]any{}}
	}

	if og := extractOpenGraph(doc); og != nil {
		fillBlanks(og, extractHTMLMeta(doc), false)
		return og
	}

	return extractHTMLMeta(doc)
}

// fillBlanks copies title/description/author/published (and optionally the
// image) from src into dst where dst is empty.
func fillBlanks(dst, src *models.Metadata, includeImage bool) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Author == "" {
		dst.Author = src.Author
	}
	if dst.Published == "" {
		dst.Published = src.Published
	}
	if includeImage && dst.Image == "" {
		dst.Image = src.Image
	}
}

// ---------------------------------------------------------------------------
// JSON-LD
// ---------------------------------------------------------------------------

// extractJSONLD parses every JSON-LD block in the raw HTML and returns the
// highest-priority candidate, or nil when none parse.
func extractJSONLD(html string) map[string]any {
	matches := jsonldRe.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil
	}

	var candidates []map[string]any
	for _, m := range matches {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &data); err != nil {
			continue
		}

		switch v := data.(type) {
		case map[string]any:
			if graph, ok := v["@graph"].([]any); ok {
				for _, item := range graph {
					if obj, ok := item.(map[string]any); ok {
						candidates = append(candidates, obj)
					}
				}
			} else {
				candidates = append(candidates, v)
			}
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					candidates = append(candidates, obj)
				}
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	for _, ptype := range typePriority {
		for _, c := range candidates {
			for _, t := range schemaTypes(c) {
				if t == ptype {
					return c
				}
			}
		}
	}

	return candidates[0]
}

// schemaTypes returns the @type values of a JSON-LD object; @type may be a
// string or a sequence of strings.
func schemaTypes(ld map[string]any) []string {
	switch v := ld["@type"].(type) {
	case string:
		return []string{v}
	case []any:
		var types []string
		for _, t := range v {
			if s, ok := t.(string); ok {
				types = append(types, s)
			}
		}
		return types
	}
	return nil
}

func mapByType(ld map[string]any) *models.Metadata {
	for _, t := range schemaTypes(ld) {
		switch t {
		case "Recipe":
			return mapRecipe(ld)
		case "Article", "NewsArticle", "BlogPosting":
			return mapArticle(ld)
		case "Product":
			return mapProduct(ld)
		case "Event":
			return mapEvent(ld)
		}
	}
	return mapDefault(ld)
}

func commonFields(ld map[string]any) *models.Metadata {
	return &models.Metadata{
		Title:       ldString(ld, "name"),
		Description: ldString(ld, "description"),
		Author:      extractAuthor(ld["author"]),
		Published:   ldString(ld, "datePublished"),
		Modified:    ldString(ld, "dateModified"),
		Keywords:    extractKeywords(ld["keywords"]),
		Image:       firstImage(ld["image"]),
		SchemaType:  firstSchemaType(ld),
		Extra:       map[string]any{},
	}
}

func mapRecipe(ld map[string]any) *models.Metadata {
	meta := commonFields(ld)
	meta.Type = models.MetaTypeRecipe

	if ingredients := stringList(ld["recipeIngredient"]); len(ingredients) > 0 {
		meta.Extra["ingredients"] = ingredients
	}
	if instructions := flattenInstructions(ld["recipeInstructions"]); len(instructions) > 0 {
		meta.Extra["instructions"] = instructions
	}

	for _, field := range []string{"prepTime", "cookTime", "totalTime"} {
		if v := ldString(ld, field); v != "" {
			meta.Extra[field] = ParseISODuration(v)
		}
	}

	if agg, ok := ld["aggregateRating"].(map[string]any); ok {
		if v := ldString(agg, "ratingValue"); v != "" {
			meta.Extra["rating"] = v
		}
		if v := ldString(agg, "ratingCount"); v != "" {
			meta.Extra["rating_count"] = v
		} else if v := ldString(agg, "reviewCount"); v != "" {
			meta.Extra["rating_count"] = v
		}
	}

	if v, ok := ld["recipeCategory"]; ok && v != nil {
		meta.Extra["category"] = v
	}
	if v, ok := ld["recipeYield"]; ok && v != nil {
		meta.Extra["yield"] = v
	}
	if v, ok := ld["recipeSubCategories"]; ok && v != nil {
		meta.Extra["sub_categories"] = v
	}

	return meta
}

func mapArticle(ld map[string]any) *models.Metadata {
	meta := commonFields(ld)
	meta.Type = models.MetaTypeArticle
	if headline := ldString(ld, "headline"); headline != "" {
		meta.Title = headline
	}
	if section := ldString(ld, "articleSection"); section != "" {
		meta.Extra["articleSection"] = section
	}
	return meta
}

func mapProduct(ld map[string]any) *models.Metadata {
	meta := commonFields(ld)
	meta.Type = models.MetaTypeProduct
	meta.Author = ""
	meta.Published = ""
	meta.Modified = ""

	switch brand := ld["brand"].(type) {
	case map[string]any:
		meta.Extra["brand"] = ldString(brand, "name")
	case string:
		meta.Extra["brand"] = brand
	}

	var offer map[string]any
	switch offers := ld["offers"].(type) {
	case map[string]any:
		offer = offers
	case []any:
		if len(offers) > 0 {
			offer, _ = offers[0].(map[string]any)
		}
	}
	if offer != nil {
		if v := ldString(offer, "price"); v != "" {
			meta.Extra["price"] = v
		}
		if v := ldString(offer, "priceCurrency"); v != "" {
			meta.Extra["currency"] = v
		}
		if v := ldString(offer, "availability"); v != "" {
			meta.Extra["availability"] = v
		}
	}

	if agg, ok := ld["aggregateRating"].(map[string]any); ok {
		if v := ldString(agg, "ratingValue"); v != "" {
			meta.Extra["rating"] = v
		}
		if v := ldString(agg, "ratingCount"); v != "" {
			meta.Extra["rating_count"] = v
		}
	}

	return meta
}

func mapEvent(ld map[string]any) *models.Metadata {
	meta := commonFields(ld)
	meta.Type = models.MetaTypeEvent
	meta.Author = ""
	meta.Published = ""
	meta.Modified = ""

	switch location := ld["location"].(type) {
	case map[string]any:
		meta.Extra["location"] = ldString(location, "name")
	case string:
		meta.Extra["location"] = location
	}
	if v := ldString(ld, "startDate"); v != "" {
		meta.Extra["startDate"] = v
	}
	if v := ldString(ld, "endDate"); v != "" {
		meta.Extra["endDate"] = v
	}

	return meta
}

func mapDefault(ld map[string]any) *models.Metadata {
	meta := commonFields(ld)
	meta.Type = models.MetaTypePage
	if meta.Title == "" {
		meta.Title = ldString(ld, "headline")
	}
	return meta
}

// ---------------------------------------------------------------------------
// JSON-LD value helpers
// ---------------------------------------------------------------------------

func ldString(ld map[string]any, key string) string {
	switch v := ld[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstSchemaType(ld map[string]any) string {
	types := schemaTypes(ld)
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// firstImage keeps the first element when the source is a sequence
func firstImage(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			if s, ok := img[0].(string); ok {
				return s
			}
		}
	case map[string]any:
		return ldString(img, "url")
	}
	return ""
}

// extractAuthor normalises author from JSON-LD (string, object, or list)
func extractAuthor(v any) string {
	switch author := v.(type) {
	case string:
		return author
	case map[string]any:
		if name := ldString(author, "name"); name != "" {
			return name
		}
		return ldString(author, "@id")
	case []any:
		var names []string
		for _, a := range author {
			if name := extractAuthor(a); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// extractKeywords normalises keywords from JSON-LD (string or list)
func extractKeywords(v any) []string {
	switch kw := v.(type) {
	case string:
		var out []string
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
		return out
	case []any:
		var out []string
		for _, k := range kw {
			if s, ok := k.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// flattenInstructions flattens HowToSection/HowToStep structures to plain
// strings, inserting "## <section>" markers for sections.
func flattenInstructions(v any) []string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}

	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}

	var result []string
	for _, item := range items {
		switch step := item.(type) {
		case string:
			result = append(result, step)
		case map[string]any:
			if ldString(step, "@type") == "HowToSection" {
				if name := ldString(step, "name"); name != "" {
					result = append(result, "## "+name)
				}
				result = append(result, flattenInstructions(step["itemListElement"])...)
			} else if text := ldString(step, "text"); text != "" {
				result = append(result, text)
			}
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// OpenGraph / Twitter Cards
// ---------------------------------------------------------------------------

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

func ogProperty(doc *goquery.Document, prop string) string {
	return metaContent(doc, `meta[property='og:`+prop+`']`)
}

func twitterName(doc *goquery.Document, name string) string {
	return metaContent(doc, `meta[name='twitter:`+name+`']`)
}

// extractOpenGraph builds a metadata record from OpenGraph and Twitter Card
// tags. Returns nil when none of title/description/image are present.
func extractOpenGraph(doc *goquery.Document) *models.Metadata {
	meta := &models.Metadata{
		Type:  models.MetaTypePage,
		Extra: map[string]any{},
	}

	meta.Title = firstNonEmpty(ogProperty(doc, "title"), twitterName(doc, "title"))
	meta.Description = firstNonEmpty(ogProperty(doc, "description"), twitterName(doc, "description"))
	meta.Image = firstNonEmpty(ogProperty(doc, "image"), twitterName(doc, "image"))

	if ogType := ogProperty(doc, "type"); ogType != "" {
		meta.Type = ogType
	}

	meta.Author = metaContent(doc, `meta[property='article:author']`)
	meta.Published = metaContent(doc, `meta[property='article:published_time']`)
	meta.Modified = metaContent(doc, `meta[property='article:modified_time']`)

	doc.Find(`meta[property='article:tag']`).Each(func(_ int, s *goquery.Selection) {
		if content, _ := s.Attr("content"); content != "" {
			meta.Keywords = append(meta.Keywords, content)
		}
	})

	if meta.Title == "" && meta.Description == "" && meta.Image == "" {
		return nil
	}
	return meta
}

// ---------------------------------------------------------------------------
// HTML fallback
// ---------------------------------------------------------------------------

// extractHTMLMeta extracts metadata from basic HTML elements: title
// (overridden by h1), meta description/author/keywords, and the first
// recognised published-date hint.
func extractHTMLMeta(doc *goquery.Document) *models.Metadata {
	meta := &models.Metadata{
		Type:  models.MetaTypePage,
		Extra: map[string]any{},
	}

	if title := doc.Find("title").First(); title.Length() > 0 {
		meta.Title = cleanText(title.Text())
	}
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		meta.Title = cleanText(h1.Text())
	}

	meta.Description = metaContent(doc, `meta[name='description']`)
	meta.Author = metaContent(doc, `meta[name='author']`)

	for _, attr := range []string{"article:published_time", "datePublished", "date"} {
		published := firstNonEmpty(
			metaContent(doc, `meta[property='`+attr+`']`),
			metaContent(doc, `meta[name='`+attr+`']`),
		)
		if published != "" {
			meta.Published = published
			break
		}
	}
	if meta.Published == "" {
		if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			meta.Published = datetime
		}
	}

	if kw := metaContent(doc, `meta[name='keywords']`); kw != "" {
		meta.Keywords = extractKeywords(kw)
	}

	return meta
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// PageLanguage returns the language tag from <html lang>, defaulting to "en"
func PageLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		return lang
	}
	return "en"
}
