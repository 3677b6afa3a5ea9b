package models

import "time"

// ChunkRecord is a persisted chunk with its embedding and denormalised
// page metadata for single-chunk retrieval.
type ChunkRecord struct {
	ID         string `badgerhold:"key"`
	URL        string `badgerholdIndex:"URL"`
	Title      string
	Author     string
	Published  string
	Updated    string
	Language   string
	Summary    string
	ChunkType  string
	ChunkIndex int
	Text       string
	Embedding  []float32
	IndexedAt  time.Time
}

// PageRecord is the persisted page-level metadata plus housekeeping
// timestamps used for differential sync.
type PageRecord struct {
	ID             string `badgerhold:"key"`
	URL            string `badgerholdIndex:"URL"`
	Title          string
	Author         string
	Published      string
	Updated        string
	Language       string
	Summary        string
	ChunkCount     int
	Embedding      []float32
	FirstIndexedAt time.Time
	IndexedAt      time.Time
}
