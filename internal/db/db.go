package db

import (
	"context"
	"time"
)

// Engine is the search engine facade: bounded search, counting and snapshot paging.
type Engine interface {
	Pinger
	Searcher
	Counter
	Snapshotter
	Close()
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher runs bounded from/size searches with optional aggregations.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
}

// Counter counts matching records without fetching them.
type Counter interface {
	Count(ctx context.Context, q *CountQuery) (int64, error)
}

// Snapshotter pages through a point-in-time view with search-after.
type Snapshotter interface {
	OpenSnapshot(ctx context.Context, index string, keepAlive time.Duration) (string, error)
	SearchSnapshot(ctx context.Context, q *SnapshotQuery) (*SnapshotPage, error)
	CloseSnapshot(ctx context.Context, id string) error
}

// Indexer loads documents into an engine. Only engines owned by this process implement it.
type Indexer interface {
	IndexDocuments(ctx context.Context, docs []Document) error
}

// KVStore is a key-value store with expiry, used for the gene position cache.
type KVStore interface {
	Pinger
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close()
}
