package interfaces

import "context"

// EmbeddingService turns texts into dense vectors.
// Embed must return one vector per input text, in input order.
type EmbeddingService interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}
