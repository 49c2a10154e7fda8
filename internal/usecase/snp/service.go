package snp

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/result"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// Aggregations asks for per-field aggregations and an optional global position histogram.
type Aggregations struct {
	Specs  []aggregation.Spec
	Global *aggregation.HistogramSpec
}

// IsEmpty reports whether nothing was requested.
func (a *Aggregations) IsEmpty() bool {
	return a == nil || (len(a.Specs) == 0 && a.Global == nil)
}

// Service handles SNP search, counting, aggregation and export streaming.
type Service struct {
	queries   QueryBuilder
	aggs      AggregationPlanner
	pager     Pager
	streamer  Streamer
	mapper    *attribute.Mapper
	maxFields int
	logger    *zap.Logger
}

// New creates an SNP service.
func New(
	queries QueryBuilder, aggs AggregationPlanner, pager Pager, streamer Streamer,
	mapper *attribute.Mapper, maxFields int, logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFields <= 0 {
		maxFields = request.DefaultMaxFields
	}
	return &Service{
		queries:   queries,
		aggs:      aggs,
		pager:     pager,
		streamer:  streamer,
		mapper:    mapper,
		maxFields: maxFields,
		logger:    logger,
	}
}

// Search returns one page of records. Requested aggregations run over the whole match set
// concurrently with the page fetch.
func (s *Service) Search(ctx context.Context, req request.Request, aggs *Aggregations) (result.Page, error) {
	storage, err := s.storageFields(req.Fields())
	if err != nil {
		return result.Page{}, err
	}

	var plan aggregation.Plan
	if !aggs.IsEmpty() {
		plan, err = s.aggs.Build(aggs.Specs, aggs.Global)
		if err != nil {
			return result.Page{}, fmt.Errorf("plan aggregations: %w", err)
		}
	}

	expr, err := s.queries.Build(ctx, req.Selection())
	if err != nil {
		return result.Page{}, fmt.Errorf("build query: %w", err)
	}

	var page, aggPage result.Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.pager.Search(gctx, expr, storage, req.From(), req.Size(), aggregation.Plan{})
		return err
	})
	if !plan.IsEmpty() {
		g.Go(func() error {
			var err error
			aggPage, err = s.pager.Search(gctx, expr, nil, 0, 0, plan)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return result.Page{}, fmt.Errorf("search: %w", err)
	}

	if a := aggPage.Aggregations(); a != nil {
		page = page.WithAggregations(*a)
	}
	return page.WithVersions(s.mapper.Registry().Versions(req.Fields())), nil
}

// Count returns the number of records the selection matches.
func (s *Service) Count(ctx context.Context, sel request.Selection) (int64, error) {
	expr, err := s.queries.Build(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	n, err := s.pager.Count(ctx, expr)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Stream hands every matching record to yield, up to limit (<= 0 means the configured cap).
// fields are external names; empty means the default set.
func (s *Service) Stream(
	ctx context.Context, sel request.Selection, fields []string, limit int,
	yield func(domsnp.Record) error,
) (int, error) {
	fields, err := s.ExportColumns(fields)
	if err != nil {
		return 0, err
	}
	storage, err := s.storageFields(fields)
	if err != nil {
		return 0, err
	}

	expr, err := s.queries.Build(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	n, err := s.streamer.Stream(ctx, expr, storage, limit, yield)
	if err != nil {
		return n, fmt.Errorf("stream: %w", err)
	}
	s.logger.Info("Stream completed", zap.String("mode", string(sel.Mode())), zap.Int("records", n))
	return n, nil
}

// ExportColumns resolves the external columns of an export: the id first, then every
// known requested field in order. Unknown names are dropped. The id does not count
// against the field limit, so the result can be fed back in.
func (s *Service) ExportColumns(fields []string) ([]string, error) {
	if len(fields) == 0 {
		fields = request.DefaultFields
	}
	if err := request.CheckFieldLimit(fields, s.maxFields); err != nil {
		return nil, err
	}

	cols := []string{domsnp.IDField}
	for _, f := range fields {
		if f == domsnp.IDField || slices.Contains(cols, f) || !s.mapper.Known(f) {
			continue
		}
		cols = append(cols, f)
	}
	if len(cols) == 1 {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoValidFields, fields)
	}
	return cols, nil
}

// Attributes lists every attribute descriptor in tree order.
func (s *Service) Attributes() []attribute.Descriptor {
	return s.mapper.Registry().Descriptors()
}

// storageFields maps requested names; at least one must be a stored attribute.
func (s *Service) storageFields(external []string) ([]string, error) {
	storage := s.mapper.ToStorage(external)
	if len(storage) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoValidFields, external)
	}
	return storage, nil
}
