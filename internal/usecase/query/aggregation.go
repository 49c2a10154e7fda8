package query

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
)

// AggregationBuilder resolves per-field aggregation specs to an executable plan.
type AggregationBuilder struct {
	reg    *attribute.Registry
	logger *zap.Logger
}

// NewAggregationBuilder creates an AggregationBuilder.
func NewAggregationBuilder(reg *attribute.Registry, logger *zap.Logger) *AggregationBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregationBuilder{reg: reg, logger: logger}
}

// Build emits one op per requested kind, named {external}_{kind}, plus the global
// position histogram when global is set.
//
// Unknown fields are dropped with a warning. If specs were given and every one was unknown,
// and there is no global histogram, the result is ErrNoValidFields.
// Exact-value kinds on text fields run on the non-analyzed variant. Min, max and histogram
// need a numeric field.
func (a *AggregationBuilder) Build(specs []aggregation.Spec, global *aggregation.HistogramSpec) (aggregation.Plan, error) {
	var ops []aggregation.Op
	var dropped []string
	for _, spec := range specs {
		d, ok := a.reg.ByExternal(spec.Field())
		if !ok {
			a.logger.Warn("Dropping aggregation on unknown field", zap.String("field", spec.Field()))
			dropped = append(dropped, spec.Field())
			continue
		}

		for _, kind := range spec.Kinds() {
			if kind.NumericOnly() && !d.IsNumeric() {
				return aggregation.Plan{}, fmt.Errorf("%w: %s on %s field %q",
					domain.ErrUnsupportedAggregation, kind, d.Type(), spec.Field())
			}

			op := aggregation.Op{
				Key:          aggregation.Key{Field: d.ExternalName(), Kind: kind},
				StorageField: storageFor(d, kind),
			}
			switch kind {
			case aggregation.Histogram:
				h := spec.Histogram()
				op.Histogram = &h
			case aggregation.Frequency:
				op.Size = aggregation.DefaultFrequencySize
				op.MinDocCount = 0
			}
			ops = append(ops, op)
		}
	}

	if len(specs) > 0 && len(dropped) == len(specs) && global == nil {
		return aggregation.Plan{}, fmt.Errorf("%w: %v", domain.ErrNoValidFields, dropped)
	}

	if global != nil {
		if err := global.Validate(); err != nil {
			return aggregation.Plan{}, err
		}
		h := *global
		ops = append(ops, aggregation.Op{
			Key:          aggregation.Key{Kind: aggregation.Histogram},
			StorageField: PosField,
			Histogram:    &h,
		})
	}

	return aggregation.NewPlan(ops)
}

func storageFor(d attribute.Descriptor, kind aggregation.Kind) string {
	if kind.ExactValue() && d.IsText() {
		return d.StorageName() + db.KeywordSuffix
	}
	return d.StorageName()
}
