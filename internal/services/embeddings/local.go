package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const localDimensions = 384

// LocalEmbedder produces deterministic hashed bag-of-words vectors. It
// needs no network or API key, which makes it the default for development
// and the fixture for tests. Vectors are L2-normalised so cosine distance
// behaves the same as with model embeddings.
type LocalEmbedder struct {
	model string
}

func NewLocalEmbedder(model string) *LocalEmbedder {
	if model == "" {
		model = "all-MiniLM-L6-v2"
	}
	return &LocalEmbedder{model: model}
}

func (e *LocalEmbedder) ModelName() string {
	return e.model
}

func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = embedText(text)
	}
	return vectors, nil
}

func embedText(text string) []float32 {
	vec := make([]float32, localDimensions)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		idx := int(sum % localDimensions)
		// Sign from a high bit keeps buckets from only accumulating
		if sum&0x80000000 != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
}
