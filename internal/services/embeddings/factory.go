package embeddings

import (
	"fmt"

	"github.com/ternarybob/openfeeder/internal/common"
	"github.com/ternarybob/openfeeder/internal/interfaces"
)

// NewFromConfig selects the embedding backend from configuration
func NewFromConfig(config *common.Config) (interfaces.EmbeddingService, error) {
	switch config.Embedding.Provider {
	case "", "local":
		return NewLocalEmbedder(config.Embedding.Model), nil
	case "openai":
		if config.Embedding.APIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key")
		}
		return NewOpenAIEmbedder(config.Embedding.APIKey, config.Embedding.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Embedding.Provider)
	}
}
