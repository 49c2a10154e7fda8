package snp

import (
	"context"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/result"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// QueryBuilder turns a selection into a filter expression.
type QueryBuilder interface {
	Build(ctx context.Context, sel request.Selection) (filter.Expression, error)
}

// AggregationPlanner resolves aggregation specs to a plan.
type AggregationPlanner interface {
	Build(specs []aggregation.Spec, global *aggregation.HistogramSpec) (aggregation.Plan, error)
}

// Pager runs bounded searches and counts.
type Pager interface {
	Search(
		ctx context.Context, expr filter.Expression, storageFields []string,
		from, size int, plan aggregation.Plan,
	) (result.Page, error)
	Count(ctx context.Context, expr filter.Expression) (int64, error)
}

// Streamer runs snapshot-backed exports.
type Streamer interface {
	Stream(
		ctx context.Context, expr filter.Expression, storageFields []string, limit int,
		yield func(domsnp.Record) error,
	) (int, error)
}
