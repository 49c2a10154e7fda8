package snp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/result"
	"github.com/USCbiostats/annoq-api-v2/internal/metrics"
)

// searcher is the consumer interface for bounded searches (ISP).
type searcher interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	Count(ctx context.Context, q *db.CountQuery) (int64, error)
}

// Pager runs bounded from/size searches.
type Pager struct {
	engine    searcher
	index     string
	conv      *Converter
	maxWindow int
	logger    *zap.Logger
}

// NewPager creates a Pager. Requests with from+size above maxWindow are rejected.
func NewPager(engine searcher, index string, conv *Converter, maxWindow int, logger *zap.Logger) *Pager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{engine: engine, index: index, conv: conv, maxWindow: maxWindow, logger: logger}
}

// Search fetches one page of records with the requested storage fields.
// A non-empty plan adds aggregations over the whole match set.
func (p *Pager) Search(
	ctx context.Context, expr filter.Expression, storageFields []string,
	from, size int, plan aggregation.Plan,
) (result.Page, error) {
	if from < 0 || size < 0 {
		return result.Page{}, fmt.Errorf("%w: negative from or size", domain.ErrInvalidRequest)
	}
	if from+size > p.maxWindow {
		return result.Page{}, fmt.Errorf("%w: from+size %d exceeds %d", domain.ErrPageWindowExceeded, from+size, p.maxWindow)
	}

	start := time.Now()
	res, err := p.engine.Search(ctx, &db.SearchQuery{
		Index:        p.index,
		Filter:       expr,
		Fields:       storageFields,
		From:         from,
		Size:         size,
		Aggregations: plan.Ops(),
	})
	metrics.ObserveBackend(db.OpSearch, time.Since(start).Seconds(), err)
	if err != nil {
		return result.Page{}, fmt.Errorf("%w: %w", domain.ErrBackend, err)
	}

	page := result.New(p.conv.ToRecords(res.Hits), res.Total, from).WithWindow(p.maxWindow)
	if plan.IsEmpty() {
		return page, nil
	}

	aggs, err := aggregation.Parse(plan, res.Aggregations)
	if err != nil {
		return result.Page{}, fmt.Errorf("%w: %w", domain.ErrBackend, err)
	}
	return page.WithAggregations(aggs), nil
}

// Count returns the number of records matching expr.
func (p *Pager) Count(ctx context.Context, expr filter.Expression) (int64, error) {
	start := time.Now()
	n, err := p.engine.Count(ctx, &db.CountQuery{Index: p.index, Filter: expr})
	metrics.ObserveBackend(db.OpCount, time.Since(start).Seconds(), err)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrBackend, err)
	}
	return n, nil
}
