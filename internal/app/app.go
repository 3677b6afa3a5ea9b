package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/openfeeder/internal/common"
	"github.com/ternarybob/openfeeder/internal/handlers"
	"github.com/ternarybob/openfeeder/internal/interfaces"
	"github.com/ternarybob/openfeeder/internal/services/analytics"
	"github.com/ternarybob/openfeeder/internal/services/crawler"
	"github.com/ternarybob/openfeeder/internal/services/diffsync"
	"github.com/ternarybob/openfeeder/internal/services/embeddings"
	"github.com/ternarybob/openfeeder/internal/services/indexer"
	"github.com/ternarybob/openfeeder/internal/services/orchestrator"
	storage "github.com/ternarybob/openfeeder/internal/storage/badger"
)

// App wires the services together and owns their lifecycles
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store        *storage.Store
	Embedder     interfaces.EmbeddingService
	Indexer      *indexer.Service
	Tombstones   *diffsync.TombstoneStore
	Tracker      *analytics.Tracker
	Orchestrator *orchestrator.Service
	Handler      *handlers.FeedHandler
}

// New builds the application from configuration
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	store, err := storage.Open(config.Storage.Badger.Path, config.Storage.Badger.ResetOnStartup, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	embedder, err := embeddings.NewFromConfig(config)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Info().
		Str("provider", config.Embedding.Provider).
		Str("model", embedder.ModelName()).
		Msg("Embedding service ready")

	tombstones, err := diffsync.NewTombstoneStore(config.Storage.TombstonePath)
	if err != nil {
		store.Close()
		return nil, err
	}

	index := indexer.NewService(store, embedder, logger)
	orch := orchestrator.NewService(config, crawler.New(logger), index, tombstones, logger)
	tracker := analytics.NewTracker(config, logger)
	if tracker.Enabled() {
		logger.Info().Str("provider", config.Analytics.Provider).Msg("Analytics enabled")
	}

	return &App{
		Config:       config,
		Logger:       logger,
		Store:        store,
		Embedder:     embedder,
		Indexer:      index,
		Tombstones:   tombstones,
		Tracker:      tracker,
		Orchestrator: orch,
		Handler:      handlers.NewFeedHandler(config, index, orch, tombstones, tracker, logger),
	}, nil
}

// Start launches the crawl scheduler
func (a *App) Start() error {
	return a.Orchestrator.Start()
}

// Close releases resources in reverse dependency order
func (a *App) Close() {
	a.Orchestrator.Stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}
}
