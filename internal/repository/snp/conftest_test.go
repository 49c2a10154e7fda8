package snp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
)

const testTree = `[
  {"id": 1, "name": "Basic Info", "leaf": false, "version": "hg38"},
  {"id": 2, "parent_id": 1, "name": "chr", "leaf": true, "keyword_searchable": true},
  {"id": 3, "parent_id": 1, "name": "pos", "leaf": true, "field_type": "number"},
  {"name": "ANNOVAR_ensembl_Closest_gene(intergenic_only)", "leaf": true},
  {"name": "1000Gp3_AF", "leaf": true, "field_type": "number"},
  {"name": "is_coding", "leaf": true, "field_type": "boolean"},
  {"name": "updated", "leaf": true, "field_type": "date"},
  {"name": "raw_blob", "leaf": true, "field_type": "object"}
]`

func newTestMapper(t *testing.T) *attribute.Mapper {
	t.Helper()
	reg, err := attribute.Load(strings.NewReader(testTree), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return attribute.NewMapper(reg, nil)
}

// mockSearcher implements searcher.
type mockSearcher struct {
	searchFn func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	countFn  func(ctx context.Context, q *db.CountQuery) (int64, error)
}

func (m *mockSearcher) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockSearcher) Count(ctx context.Context, q *db.CountQuery) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, q)
	}
	return 0, nil
}

// fakeSnapshots implements db.Snapshotter over n synthetic records.
// Every fetch refreshes the handle by appending "+".
type fakeSnapshots struct {
	mu sync.Mutex

	records int
	openErr error
	// failAt fails the fetch with this zero-based index.
	failAt    int
	fetchErr  error
	closeErr  error
	fetches   []db.SnapshotQuery
	closed    []string
	keepAlive time.Duration

	// closeCtxErrs records ctx.Err() as seen by each release.
	closeCtxErrs []error
}

func newFakeSnapshots(records int) *fakeSnapshots {
	return &fakeSnapshots{records: records, failAt: -1}
}

func (f *fakeSnapshots) OpenSnapshot(_ context.Context, _ string, keepAlive time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return "", f.openErr
	}
	f.keepAlive = keepAlive
	return "pit", nil
}

func (f *fakeSnapshots) SearchSnapshot(_ context.Context, q *db.SnapshotQuery) (*db.SnapshotPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetches) == f.failAt {
		f.fetches = append(f.fetches, *q)
		return nil, f.fetchErr
	}
	f.fetches = append(f.fetches, *q)

	next := 0
	if q.After != nil {
		next = q.After[0].(int) + 1
	}
	var hits []db.Hit
	for i := next; i < f.records && len(hits) < q.Size; i++ {
		hits = append(hits, db.Hit{
			ID:     fmt.Sprintf("2:%dA>G", i),
			Source: map[string]any{"chr": "2", "pos": float64(i)},
			Sort:   []any{i},
		})
	}
	return &db.SnapshotPage{Snapshot: q.Snapshot + "+", Hits: hits}, nil
}

func (f *fakeSnapshots) CloseSnapshot(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	f.closeCtxErrs = append(f.closeCtxErrs, ctx.Err())
	return f.closeErr
}
