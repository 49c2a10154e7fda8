package snp

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/result"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

const testTree = `[
  {"id": 1, "name": "Basic Info", "leaf": false, "version": "hg38"},
  {"id": 2, "parent_id": 1, "name": "chr", "leaf": true, "keyword_searchable": true},
  {"id": 3, "parent_id": 1, "name": "pos", "leaf": true, "field_type": "number"},
  {"id": 4, "parent_id": 1, "name": "ref", "leaf": true},
  {"id": 5, "parent_id": 1, "name": "alt", "leaf": true},
  {"id": 6, "parent_id": 1, "name": "rs_dbSNP151", "leaf": true, "keyword_searchable": true},
  {"name": "1000Gp3_AF", "leaf": true, "field_type": "number"}
]`

func newTestMapper(t *testing.T) *attribute.Mapper {
	t.Helper()
	reg, err := attribute.Load(strings.NewReader(testTree), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return attribute.NewMapper(reg, nil)
}

// --- Mocks ---

type mockQueryBuilder struct {
	buildFn func(ctx context.Context, sel request.Selection) (filter.Expression, error)
}

func (m *mockQueryBuilder) Build(ctx context.Context, sel request.Selection) (filter.Expression, error) {
	if m.buildFn != nil {
		return m.buildFn(ctx, sel)
	}
	return filter.Expression{}, nil
}

type mockPlanner struct {
	buildFn func(specs []aggregation.Spec, global *aggregation.HistogramSpec) (aggregation.Plan, error)
}

func (m *mockPlanner) Build(specs []aggregation.Spec, global *aggregation.HistogramSpec) (aggregation.Plan, error) {
	if m.buildFn != nil {
		return m.buildFn(specs, global)
	}
	return aggregation.Plan{}, nil
}

type searchCall struct {
	fields     []string
	from, size int
	plan       aggregation.Plan
}

type mockPager struct {
	mu       sync.Mutex
	calls    []searchCall
	searchFn func(ctx context.Context, fields []string, from, size int, plan aggregation.Plan) (result.Page, error)
	countFn  func(ctx context.Context, expr filter.Expression) (int64, error)
}

func (m *mockPager) Search(
	ctx context.Context, _ filter.Expression, fields []string, from, size int, plan aggregation.Plan,
) (result.Page, error) {
	m.mu.Lock()
	m.calls = append(m.calls, searchCall{fields: fields, from: from, size: size, plan: plan})
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, fields, from, size, plan)
	}
	return result.Page{}, nil
}

func (m *mockPager) Count(ctx context.Context, expr filter.Expression) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, expr)
	}
	return 0, nil
}

type mockStreamer struct {
	fields  []string
	limit   int
	records []domsnp.Record
	err     error
}

func (m *mockStreamer) Stream(
	_ context.Context, _ filter.Expression, fields []string, limit int, yield func(domsnp.Record) error,
) (int, error) {
	m.fields = fields
	m.limit = limit
	for i, r := range m.records {
		if err := yield(r); err != nil {
			return i, err
		}
	}
	return len(m.records), m.err
}
