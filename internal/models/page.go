package models

// Chunk types
const (
	ChunkTypeParagraph    = "paragraph"
	ChunkTypeHeading      = "heading"
	ChunkTypeList         = "list"
	ChunkTypeCode         = "code"
	ChunkTypeQuote        = "quote"
	ChunkTypeIngredients  = "ingredients"
	ChunkTypeInstructions = "instructions"
)

// Chunk is a single content chunk extracted from a page
type Chunk struct {
	Text string
	Type string
}

// ParsedPage is the cleaned, chunked representation of one web page
type ParsedPage struct {
	URL       string
	Title     string
	Author    string
	Published string
	Updated   string
	Language  string
	Summary   string
	Chunks    []Chunk
	Metadata  *Metadata
}
