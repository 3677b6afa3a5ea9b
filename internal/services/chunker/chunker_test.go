package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/openfeeder/internal/models"
)

const recipePage = `<html lang="fr-CA">
<head>
  <title>Pâté chinois classique - Ricardo</title>
  <script type='application/ld+json'>
  {
    "@type": "Recipe",
    "name": "Pâté chinois classique",
    "description": "La meilleure recette de pâté chinois.",
    "author": {"@type": "Person", "name": "Ricardo Larrivée"},
    "recipeIngredient": ["1 lb boeuf haché", "1 boîte de maïs en crème", "4 pommes de terre"],
    "recipeInstructions": [
      {"@type": "HowToStep", "text": "Faire revenir le boeuf haché."},
      {"@type": "HowToStep", "text": "Couvrir de purée de pommes de terre."}
    ]
  }
  </script>
</head>
<body>
  <main>
    <h1>Pâté chinois classique</h1>
    <p>La meilleure recette de pâté chinois, un classique québécois réconfortant pour toute la famille.</p>
  </main>
</body>
</html>`

const articlePage = `<html lang="en">
<body>
  <nav>Home | About | Contact navigation bar</nav>
  <div class="sidebar-ads">Buy things! Special offer just for you today.</div>
  <article>
    <h1>A Heading Long Enough To Keep</h1>
    <p>Artificial intelligence is transforming every industry at an unprecedented pace.</p>
    <p>Artificial intelligence is transforming every industry at an unprecedented pace.</p>
    <ul><li>First bullet item here</li><li>Second bullet item here</li></ul>
    <blockquote>Someone said something quotable and memorable.</blockquote>
    <pre>func main() {
    fmt.Println("hello")
}</pre>
  </article>
</body>
</html>`

func chunkTypes(chunks []models.Chunk) []string {
	types := make([]string, len(chunks))
	for i, c := range chunks {
		types[i] = c.Type
	}
	return types
}

func TestChunkHTMLRecipe(t *testing.T) {
	page := ChunkHTML("https://www.ricardo.ca/pate-chinois", recipePage)

	assert.Equal(t, "Pâté chinois classique", page.Title)
	assert.Equal(t, "Ricardo Larrivée", page.Author)
	assert.Equal(t, "fr-CA", page.Language)
	require.NotNil(t, page.Metadata)
	assert.Equal(t, models.MetaTypeRecipe, page.Metadata.Type)

	types := chunkTypes(page.Chunks)
	assert.Contains(t, types, models.ChunkTypeIngredients)
	assert.Contains(t, types, models.ChunkTypeInstructions)

	// Ingredients chunk comes first, formatted one per line
	assert.Equal(t, models.ChunkTypeIngredients, page.Chunks[0].Type)
	assert.True(t, strings.HasPrefix(page.Chunks[0].Text, "Ingredients:\n- "))

	assert.Equal(t, models.ChunkTypeInstructions, page.Chunks[1].Type)
	assert.Contains(t, page.Chunks[1].Text, "1. Faire revenir le boeuf haché.")
	assert.Contains(t, page.Chunks[1].Text, "2. Couvrir de purée de pommes de terre.")
}

func TestChunkHTMLTypesAndNoise(t *testing.T) {
	page := ChunkHTML("https://example.com/article", articlePage)

	types := chunkTypes(page.Chunks)
	assert.Contains(t, types, models.ChunkTypeHeading)
	assert.Contains(t, types, models.ChunkTypeParagraph)
	assert.Contains(t, types, models.ChunkTypeList)
	assert.Contains(t, types, models.ChunkTypeQuote)
	assert.Contains(t, types, models.ChunkTypeCode)

	for _, c := range page.Chunks {
		assert.NotContains(t, c.Text, "navigation bar")
		assert.NotContains(t, c.Text, "Special offer")
	}

	// Duplicate paragraph emitted once
	count := 0
	for _, c := range page.Chunks {
		if strings.Contains(c.Text, "unprecedented pace") {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Code chunk preserves original whitespace
	for _, c := range page.Chunks {
		if c.Type == models.ChunkTypeCode {
			assert.Contains(t, c.Text, "\n")
		}
	}
}

func TestChunkHTMLDeterministic(t *testing.T) {
	first := ChunkHTML("https://example.com/article", articlePage)
	second := ChunkHTML("https://example.com/article", articlePage)

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].Text, second.Chunks[i].Text)
		assert.Equal(t, first.Chunks[i].Type, second.Chunks[i].Type)
	}
}

func TestChunkHTMLShortTextSkipped(t *testing.T) {
	page := ChunkHTML("https://example.com/short", `<html><body><p>tiny</p></body></html>`)
	assert.Empty(t, page.Chunks)
}

func TestChunkHTMLSummaryFallbacks(t *testing.T) {
	// No paragraphs, but a meta description
	page := ChunkHTML("https://example.com/desc", `<html><head>
	<meta name="description" content="Described elsewhere." />
	<title>Fallback Page Title</title></head><body></body></html>`)
	assert.Equal(t, "Described elsewhere.", page.Summary)

	// Neither paragraphs nor description: falls back to the title
	page = ChunkHTML("https://example.com/title", `<html><head><title>Only The Title Here</title></head><body></body></html>`)
	assert.Equal(t, "Only The Title Here", page.Summary)
}

func TestSplitLongText(t *testing.T) {
	sentence := "This sentence is about sixty characters long for the test. "
	long := strings.TrimSpace(strings.Repeat(sentence, 40))
	require.Greater(t, len(long), maxChunkLen)

	chunks := splitLongText(long, models.ChunkTypeParagraph)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), maxChunkLen)
		assert.NotEmpty(t, c.Text)
	}

	// Short text passes through untouched
	chunks = splitLongText("Short.", models.ChunkTypeParagraph)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Short.", chunks[0].Text)
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("One. Two! Three? Four")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four"}, sentences)
}
