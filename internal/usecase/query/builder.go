package query

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
)

// Storage fields the selection modes query directly.
const (
	ChrField  = "chr"
	PosField  = "pos"
	RsIDField = "rs_dbSNP151"
)

// Builder turns record selections into engine-agnostic filter expressions.
type Builder struct {
	mapper *attribute.Mapper
	genes  GeneLocator
	logger *zap.Logger
}

// NewBuilder creates a Builder. genes may be nil; gene product selections then report
// the lookup as unavailable.
func NewBuilder(mapper *attribute.Mapper, genes GeneLocator, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{mapper: mapper, genes: genes, logger: logger}
}

// Build dispatches on the selection mode.
func (b *Builder) Build(ctx context.Context, sel request.Selection) (filter.Expression, error) {
	p := sel.Params()
	switch sel.Mode() {
	case mode.Chromosome:
		return b.ChromosomeRange(p.Chromosome.Chr, p.Chromosome.Start, p.Chromosome.End, sel.FilterFields())
	case mode.IDList:
		return b.IDList(p.IDs, sel.FilterFields())
	case mode.RsIDList:
		return b.RsIDList(p.RsIDs, sel.FilterFields())
	case mode.GeneProduct:
		return b.GeneProduct(ctx, p.Gene, sel.FilterFields())
	case mode.Keyword:
		return b.Keyword(p.Keyword.Text, b.keywordFields(p.Keyword), sel.FilterFields())
	default:
		return filter.Expression{}, fmt.Errorf("%w: unsupported search mode %q", domain.ErrInvalidRequest, sel.Mode())
	}
}

// ChromosomeRange matches chr exactly and pos within [start, end].
func (b *Builder) ChromosomeRange(chr string, start, end int64, filterFields []string) (filter.Expression, error) {
	term, err := filter.NewTerm(ChrField, chr)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	r, err := filter.Inclusive(float64(start), float64(end))
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	pos, err := filter.NewRange(PosField, r)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return b.compose(nil, []filter.Clause{term, pos}, filterFields)
}

// IDList matches the engine-native record ids.
func (b *Builder) IDList(ids []string, filterFields []string) (filter.Expression, error) {
	c, err := filter.NewIDs(ids)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return b.compose(nil, []filter.Clause{c}, filterFields)
}

// RsIDList matches any of the reference SNP ids. One id and many use the same predicate.
func (b *Builder) RsIDList(rsids []string, filterFields []string) (filter.Expression, error) {
	c, err := filter.NewTerms(RsIDField, rsids)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return b.compose(nil, []filter.Clause{c}, filterFields)
}

// GeneProduct resolves the gene and searches its interval.
// An unknown gene yields domain.ErrNoQuery wrapping domain.ErrGeneNotFound; a lookup
// outage yields domain.ErrGeneLookupUnavailable.
func (b *Builder) GeneProduct(ctx context.Context, name string, filterFields []string) (filter.Expression, error) {
	if b.genes == nil {
		return filter.Expression{}, fmt.Errorf("%w: no gene locator configured", domain.ErrGeneLookupUnavailable)
	}

	pos, err := b.genes.Locate(ctx, name)
	switch {
	case errors.Is(err, domain.ErrGeneNotFound):
		b.logger.Info("Gene not found", zap.String("gene", name))
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrNoQuery, err)
	case err != nil:
		return filter.Expression{}, fmt.Errorf("locate gene %s: %w", name, err)
	}

	return b.ChromosomeRange(pos.Chr, pos.Start, pos.End, filterFields)
}

// Keyword runs a free-text match restricted to storage fields.
func (b *Builder) Keyword(text string, storageFields []string, filterFields []string) (filter.Expression, error) {
	if len(storageFields) == 0 {
		return filter.Expression{}, fmt.Errorf("%w: no searchable fields for keyword", domain.ErrNoValidFields)
	}
	c, err := filter.NewMultiMatch(text, storageFields)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return b.compose([]filter.Clause{c}, nil, filterFields)
}

// keywordFields resolves the keyword restriction to storage names.
// Gene fields win over an explicit list; an empty list means the searchable set.
func (b *Builder) keywordFields(k *request.Keyword) []string {
	reg := b.mapper.Registry()
	switch {
	case k.GeneFields:
		return reg.GeneSearchFields()
	case len(k.Fields) > 0:
		return b.mapper.ToStorage(k.Fields)
	default:
		return reg.SearchableFields()
	}
}

// compose adds one exists predicate per filter field. The synthetic id maps to the native id;
// unknown names are dropped by the mapper.
func (b *Builder) compose(must, required []filter.Clause, filterFields []string) (filter.Expression, error) {
	for _, f := range b.existsFields(filterFields) {
		c, err := filter.NewExists(f)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		required = append(required, c)
	}

	expr, err := filter.NewExpression(must, required, nil)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return expr, nil
}

func (b *Builder) existsFields(external []string) []string {
	out := make([]string, 0, len(external))
	for _, f := range external {
		if f == attribute.IDField {
			out = append(out, db.IDField)
		}
	}
	return append(out, b.mapper.ToStorage(external)...)
}
