package aggregation

import (
	"fmt"
	"slices"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
)

// Kind is a per-field sub-aggregation.
type Kind string

// Sub-aggregation kinds.
const (
	DocCount  Kind = "doc_count"
	Min       Kind = "min"
	Max       Kind = "max"
	Histogram Kind = "histogram"
	Frequency Kind = "frequency"
	Missing   Kind = "missing"
)

// AllKinds lists every kind in output order.
var AllKinds = []Kind{DocCount, Min, Max, Histogram, Frequency, Missing}

// GlobalName is the aggregation name of the position histogram shared by all fields.
const GlobalName = "histogram"

// DefaultFrequencySize caps the frequency breakdown.
const DefaultFrequencySize = 20

// IsValid checks if the kind is supported.
func (k Kind) IsValid() bool {
	return slices.Contains(AllKinds, k)
}

// NumericOnly reports whether the kind needs a numeric field.
func (k Kind) NumericOnly() bool {
	return k == Min || k == Max || k == Histogram
}

// ExactValue reports whether the kind must run on the non-analyzed variant of a text field.
func (k Kind) ExactValue() bool {
	return k == Frequency || k == Missing
}

// HistogramSpec holds fixed-interval bucketing with extended bounds.
type HistogramSpec struct {
	Interval float64 `json:"interval"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// DefaultHistogram is the position histogram used when the caller gives no parameters.
func DefaultHistogram() HistogramSpec {
	return HistogramSpec{Interval: 50000, Min: 0, Max: 500000}
}

// Validate checks interval and bounds.
func (h HistogramSpec) Validate() error {
	if h.Interval <= 0 {
		return fmt.Errorf("%w: histogram interval must be positive", domain.ErrInvalidRequest)
	}
	if h.Min > h.Max {
		return fmt.Errorf("%w: histogram min %v exceeds max %v", domain.ErrInvalidRequest, h.Min, h.Max)
	}
	return nil
}

// Spec asks for sub-aggregations on one external field.
type Spec struct {
	field     string
	kinds     []Kind
	histogram HistogramSpec
}

// NewSpec validates and creates a Spec. Duplicate kinds collapse; a zero histogram takes the default.
func NewSpec(field string, kinds []Kind, hist *HistogramSpec) (Spec, error) {
	if field == "" {
		return Spec{}, fmt.Errorf("%w: aggregation field is required", domain.ErrInvalidRequest)
	}
	if len(kinds) == 0 {
		return Spec{}, fmt.Errorf("%w: no aggregations requested for %q", domain.ErrInvalidRequest, field)
	}

	uniq := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if !k.IsValid() {
			return Spec{}, fmt.Errorf("%w: %q on %q", domain.ErrUnsupportedAggregation, k, field)
		}
		if !slices.Contains(uniq, k) {
			uniq = append(uniq, k)
		}
	}

	h := DefaultHistogram()
	if hist != nil {
		if err := hist.Validate(); err != nil {
			return Spec{}, err
		}
		h = *hist
	}
	return Spec{field: field, kinds: uniq, histogram: h}, nil
}

// Field returns the external field name.
func (s Spec) Field() string { return s.field }

// Kinds returns the requested kinds in request order.
func (s Spec) Kinds() []Kind { return s.kinds }

// Histogram returns the histogram parameters.
func (s Spec) Histogram() HistogramSpec { return s.histogram }

// Key identifies one aggregation: the external field and the kind.
// The global histogram has an empty Field.
type Key struct {
	Field string
	Kind  Kind
}

// Name returns the wire name of the aggregation.
func (k Key) Name() string {
	if k.Field == "" {
		return GlobalName
	}
	return k.Field + "_" + string(k.Kind)
}

// Op is one engine-agnostic aggregation, resolved to a storage field.
type Op struct {
	Key Key
	// StorageField already carries the non-analyzed suffix when the kind needs it.
	StorageField string
	Histogram    *HistogramSpec
	// Size and MinDocCount apply to Frequency.
	Size        int
	MinDocCount int
}

// Plan is the set of aggregation operations of one request, keyed by wire name.
type Plan struct {
	ops   []Op
	index map[string]int
}

// NewPlan indexes ops by name. Names must be unique.
func NewPlan(ops []Op) (Plan, error) {
	idx := make(map[string]int, len(ops))
	for i, op := range ops {
		name := op.Key.Name()
		if _, dup := idx[name]; dup {
			return Plan{}, fmt.Errorf("%w: aggregation %q requested twice", domain.ErrInvalidRequest, name)
		}
		idx[name] = i
	}
	return Plan{ops: ops, index: idx}, nil
}

// Ops returns the operations in build order.
func (p Plan) Ops() []Op { return p.ops }

// IsEmpty reports whether the plan holds no operations.
func (p Plan) IsEmpty() bool { return len(p.ops) == 0 }

// Lookup resolves a wire name back to its key.
func (p Plan) Lookup(name string) (Key, bool) {
	i, ok := p.index[name]
	if !ok {
		return Key{}, false
	}
	return p.ops[i].Key, true
}
