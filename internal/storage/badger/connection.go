package badger

import (
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// Store wraps the embedded badgerhold database holding page and chunk records
type Store struct {
	db     *badgerhold.Store
	logger arbor.ILogger
}

// Open initialises the embedded database at path. With reset true any
// existing index is wiped first, forcing a full re-crawl.
func Open(path string, reset bool, logger arbor.ILogger) (*Store, error) {
	if reset {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to reset index at %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("Index reset")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(path).WithLogger(nil)

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}

	logger.Info().Str("path", path).Msg("Index opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
