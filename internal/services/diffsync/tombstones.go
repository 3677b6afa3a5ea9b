package diffsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/openfeeder/internal/models"
)

// Deleted pages are remembered so sync clients can drop them too.
// The store keeps at most this many entries, discarding the oldest.
const maxTombstones = 1000

// TombstoneStore persists URL deletion markers as a JSON file mapping
// URL to deletion timestamp.
type TombstoneStore struct {
	path string

	mu      sync.RWMutex
	entries map[string]string
}

func NewTombstoneStore(path string) (*TombstoneStore, error) {
	s := &TombstoneStore{
		path:    path,
		entries: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TombstoneStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read tombstones: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("failed to parse tombstones: %w", err)
	}
	return nil
}

// Add records the deletion of a URL and persists the store
func (s *TombstoneStore) Add(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[url] = time.Now().UTC().Format(time.RFC3339)
	s.prune()
	return s.save()
}

// Remove clears a tombstone, typically when the URL is re-indexed
func (s *TombstoneStore) Remove(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[url]; !ok {
		return nil
	}
	delete(s.entries, url)
	return s.save()
}

// Since returns tombstones at or after the cutoff, sorted by deletion time.
// A zero cutoff returns everything.
func (s *TombstoneStore) Since(cutoff time.Time) []models.Tombstone {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Tombstone
	for url, deletedAt := range s.entries {
		if !cutoff.IsZero() {
			t, ok := parseTimestamp(deletedAt)
			if !ok || t.Before(cutoff) {
				continue
			}
		}
		result = append(result, models.Tombstone{URL: url, DeletedAt: deletedAt})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DeletedAt < result[j].DeletedAt
	})
	return result
}

// Len reports the number of stored tombstones
func (s *TombstoneStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// prune drops the oldest entries beyond the cap. Caller holds the lock.
func (s *TombstoneStore) prune() {
	if len(s.entries) <= maxTombstones {
		return
	}

	type entry struct {
		url       string
		deletedAt string
	}
	all := make([]entry, 0, len(s.entries))
	for url, deletedAt := range s.entries {
		all = append(all, entry{url, deletedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].deletedAt < all[j].deletedAt
	})

	for _, e := range all[:len(all)-maxTombstones] {
		delete(s.entries, e.url)
	}
}

// save writes the store to disk. Caller holds the lock.
func (s *TombstoneStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create tombstone directory: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tombstones: %w", err)
	}
	return nil
}
