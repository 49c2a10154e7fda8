package db

import (
	"time"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
)

// IDField is the engine-native document identifier as it appears in queries.
const IDField = "_id"

// SearchQuery is the input for a bounded search.
type SearchQuery struct {
	Index        string
	Filter       filter.Expression
	Fields       []string
	From         int
	Size         int
	Aggregations []aggregation.Op
}

// SearchResult is the output of a bounded search.
type SearchResult struct {
	Total        int64
	Hits         []Hit
	Aggregations aggregation.Raw
}

// Hit is a single matching document.
type Hit struct {
	ID     string
	Source map[string]any
	// Sort is the continuation key of the hit in snapshot mode.
	Sort []any
}

// CountQuery is the input for a count.
type CountQuery struct {
	Index  string
	Filter filter.Expression
}

// SnapshotQuery fetches one batch from an open snapshot.
type SnapshotQuery struct {
	Snapshot  string
	Filter    filter.Expression
	Fields    []string
	Size      int
	KeepAlive time.Duration
	// After is the sort key of the last hit of the previous batch; nil for the first batch.
	After []any
}

// SnapshotPage is one batch of a snapshot scan.
type SnapshotPage struct {
	// Snapshot is the handle returned by the backend, which may differ from the one sent.
	Snapshot string
	Hits     []Hit
}

// Document is a record to load through an Indexer.
type Document struct {
	ID     string
	Fields map[string]any
}
