package feed

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const chunkWordLimit = 500

var (
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	listLineRe = regexp.MustCompile(`^(\d+[.)]|[-*+])\s`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#039;", "'",
	"&nbsp;", " ",
)

// Chunk is a typed block of plain text
type Chunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// StripHTML removes tags and decodes the common entities
func StripHTML(s string) string {
	return strings.TrimSpace(entityReplacer.Replace(tagRe.ReplaceAllString(s, " ")))
}

// ChunkText splits plain text (or HTML, which is stripped first) into
// typed chunks. Blocks are separated by blank lines; blocks over the
// word limit are greedily packed into multiple chunks.
func ChunkText(url, body string) []Chunk {
	text := StripHTML(body)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	for _, block := range splitBlocks(text) {
		blockType := classify(block)
		for _, part := range splitByWords(block, chunkWordLimit) {
			chunks = append(chunks, Chunk{
				ID:   chunkID(url, len(chunks)),
				Text: part,
				Type: blockType,
			})
		}
	}
	return chunks
}

// Summarise returns roughly the first forty words of the text
func Summarise(body string) string {
	words := strings.Fields(StripHTML(body))
	if len(words) <= 40 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:40], " ") + "…"
}

func chunkID(url string, index int) string {
	sum := md5.Sum([]byte(url))
	return fmt.Sprintf("%s_%d", hex.EncodeToString(sum[:]), index)
}

func splitBlocks(text string) []string {
	var blocks []string
	for _, block := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if b := strings.TrimSpace(block); b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func splitByWords(block string, limit int) []string {
	words := strings.Fields(block)
	if len(words) <= limit {
		// Within the limit the block keeps its original line structure
		return []string{block}
	}

	var parts []string
	for start := 0; start < len(words); start += limit {
		end := start + limit
		if end > len(words) {
			end = len(words)
		}
		parts = append(parts, strings.Join(words[start:end], " "))
	}
	return parts
}

// classify labels a block as heading, list, or paragraph. A short single
// line is a heading; a block where at least half the lines look like
// bullets or numbered steps is a list.
func classify(block string) string {
	lines := strings.Split(block, "\n")
	if len(lines) == 1 && len(strings.Fields(block)) < 15 {
		return "heading"
	}

	listLines := 0
	for _, line := range lines {
		if listLineRe.MatchString(strings.TrimSpace(line)) {
			listLines++
		}
	}
	if listLines*2 >= len(lines) && listLines > 0 {
		return "list"
	}
	return "paragraph"
}
