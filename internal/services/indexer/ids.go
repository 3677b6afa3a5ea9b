package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChunkID derives a stable chunk identifier from the page URL and chunk
// position, so re-indexing a page produces the same IDs.
func ChunkID(url string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s::chunk::%d", url, index)))
	return hex.EncodeToString(sum[:])[:16]
}

// PageID derives a stable page identifier from the URL
func PageID(url string) string {
	sum := sha256.Sum256([]byte("page::" + url))
	return hex.EncodeToString(sum[:])[:16]
}
