package filter

import "fmt"

// MaxClausesPerGroup is the maximum number of clauses per boolean group.
const MaxClausesPerGroup = 64

// Expression is an engine-agnostic boolean query.
// must clauses score and are required, filter clauses are required without scoring,
// should clauses form a disjunction of which at least one must match when present.
type Expression struct {
	must   []Clause
	filter []Clause
	should []Clause
}

// NewExpression validates and creates an Expression.
func NewExpression(must, filter, should []Clause) (Expression, error) {
	if len(must) > MaxClausesPerGroup {
		return Expression{}, fmt.Errorf("too many must clauses (max %d)", MaxClausesPerGroup)
	}
	if len(filter) > MaxClausesPerGroup {
		return Expression{}, fmt.Errorf("too many filter clauses (max %d)", MaxClausesPerGroup)
	}
	if len(should) > MaxClausesPerGroup {
		return Expression{}, fmt.Errorf("too many should clauses (max %d)", MaxClausesPerGroup)
	}
	return Expression{must: must, filter: filter, should: should}, nil
}

// Must returns the scored required clauses.
func (e Expression) Must() []Clause { return e.must }

// Filter returns the unscored required clauses.
func (e Expression) Filter() []Clause { return e.filter }

// Should returns the disjunctive clauses.
func (e Expression) Should() []Clause { return e.should }

// IsEmpty reports whether the expression has no clauses (matches everything).
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.filter) == 0 && len(e.should) == 0
}

// WithFilter returns a copy with extra filter clauses appended.
func (e Expression) WithFilter(clauses ...Clause) (Expression, error) {
	filter := make([]Clause, 0, len(e.filter)+len(clauses))
	filter = append(filter, e.filter...)
	filter = append(filter, clauses...)
	return NewExpression(e.must, filter, e.should)
}

// Kind identifies the predicate a Clause expresses.
type Kind string

// Clause kinds.
const (
	KindTerm       Kind = "term"
	KindTerms      Kind = "terms"
	KindRange      Kind = "range"
	KindExists     Kind = "exists"
	KindIDs        Kind = "ids"
	KindMultiMatch Kind = "multi_match"
)

// Clause is a single predicate.
type Clause struct {
	kind      Kind
	field     string
	value     string
	values    []string
	rangeExpr *Range
	text      string
	fields    []string
}

// NewTerm creates an exact-value match on a field.
func NewTerm(field, value string) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("term field is required")
	}
	if value == "" {
		return Clause{}, fmt.Errorf("term value is required for field %q", field)
	}
	return Clause{kind: KindTerm, field: field, value: value}, nil
}

// NewTerms creates a match on any of the given exact values.
func NewTerms(field string, values []string) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("terms field is required")
	}
	if len(values) == 0 {
		return Clause{}, fmt.Errorf("at least one value is required for field %q", field)
	}
	return Clause{kind: KindTerms, field: field, values: values}, nil
}

// NewRange creates a numeric range condition.
func NewRange(field string, r Range) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("range field is required")
	}
	return Clause{kind: KindRange, field: field, rangeExpr: &r}, nil
}

// NewExists requires the field to be present and non-null.
func NewExists(field string) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("exists field is required")
	}
	return Clause{kind: KindExists, field: field}, nil
}

// NewIDs matches records by their engine-native identifier.
func NewIDs(ids []string) (Clause, error) {
	if len(ids) == 0 {
		return Clause{}, fmt.Errorf("at least one id is required")
	}
	return Clause{kind: KindIDs, values: ids}, nil
}

// NewMultiMatch creates a free-text match restricted to fields.
func NewMultiMatch(text string, fields []string) (Clause, error) {
	if text == "" {
		return Clause{}, fmt.Errorf("match text is required")
	}
	if len(fields) == 0 {
		return Clause{}, fmt.Errorf("at least one field is required for text match")
	}
	return Clause{kind: KindMultiMatch, text: text, fields: fields}, nil
}

// Kind returns the predicate kind.
func (c Clause) Kind() Kind { return c.kind }

// Field returns the field for term, terms, range and exists clauses.
func (c Clause) Field() string { return c.field }

// Value returns the term value.
func (c Clause) Value() string { return c.value }

// Values returns the terms values or ids.
func (c Clause) Values() []string { return c.values }

// Range returns the range bounds.
func (c Clause) Range() *Range { return c.rangeExpr }

// Text returns the free-text query.
func (c Clause) Text() string { return c.text }

// Fields returns the fields a multi-match is restricted to.
func (c Clause) Fields() []string { return c.fields }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// Inclusive creates a closed range [lo, hi].
func Inclusive(lo, hi float64) (Range, error) {
	if lo > hi {
		return Range{}, fmt.Errorf("range lower bound %v exceeds upper bound %v", lo, hi)
	}
	return NewRangeFilter(nil, &lo, nil, &hi)
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v satisfies every bound.
func (r Range) Contains(v float64) bool {
	if r.gt != nil && v <= *r.gt {
		return false
	}
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lt != nil && v >= *r.lt {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}
