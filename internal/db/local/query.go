package local

import (
	"fmt"
	"math"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
)

// buildQuery translates an expression. must and filter clauses are ANDed;
// should clauses contribute one disjunction that must match.
func (e *Engine) buildQuery(expr filter.Expression) (query.Query, error) {
	if expr.IsEmpty() {
		return bleve.NewMatchAllQuery(), nil
	}

	var conj []query.Query
	for _, group := range [][]filter.Clause{expr.Must(), expr.Filter()} {
		for _, c := range group {
			q, err := e.clause(c)
			if err != nil {
				return nil, err
			}
			conj = append(conj, q)
		}
	}

	if should := expr.Should(); len(should) > 0 {
		disj := make([]query.Query, 0, len(should))
		for _, c := range should {
			q, err := e.clause(c)
			if err != nil {
				return nil, err
			}
			disj = append(disj, q)
		}
		conj = append(conj, bleve.NewDisjunctionQuery(disj...))
	}

	if len(conj) == 1 {
		return conj[0], nil
	}
	return bleve.NewConjunctionQuery(conj...), nil
}

func (e *Engine) clause(c filter.Clause) (query.Query, error) {
	switch c.Kind() {
	case filter.KindTerm:
		return e.term(c.Field(), c.Value())
	case filter.KindTerms:
		if c.Field() == db.IDField {
			return bleve.NewDocIDQuery(c.Values()), nil
		}
		disj := make([]query.Query, 0, len(c.Values()))
		for _, v := range c.Values() {
			q, err := e.term(c.Field(), v)
			if err != nil {
				return nil, err
			}
			disj = append(disj, q)
		}
		return bleve.NewDisjunctionQuery(disj...), nil
	case filter.KindRange:
		return rangeQuery(c.Field(), *c.Range()), nil
	case filter.KindExists:
		return e.exists(c.Field()), nil
	case filter.KindIDs:
		return bleve.NewDocIDQuery(c.Values()), nil
	case filter.KindMultiMatch:
		disj := make([]query.Query, 0, len(c.Fields()))
		for _, f := range c.Fields() {
			m := bleve.NewMatchQuery(c.Text())
			m.SetField(f)
			disj = append(disj, m)
		}
		return bleve.NewDisjunctionQuery(disj...), nil
	default:
		return nil, fmt.Errorf("unsupported clause kind %q", c.Kind())
	}
}

// term matches an exact value. Text fields go through their non-analyzed variant.
func (e *Engine) term(field, value string) (query.Query, error) {
	if field == db.IDField {
		return bleve.NewDocIDQuery([]string{value}), nil
	}
	switch e.types[field] {
	case db.IndexFieldNumeric:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q is numeric, got %q", field, value)
		}
		inc := true
		q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &inc, &inc)
		q.SetField(field)
		return q, nil
	case db.IndexFieldBoolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("field %q is boolean, got %q", field, value)
		}
		q := bleve.NewBoolFieldQuery(b)
		q.SetField(field)
		return q, nil
	case db.IndexFieldText:
		q := bleve.NewTermQuery(value)
		q.SetField(field + db.KeywordSuffix)
		return q, nil
	default:
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		return q, nil
	}
}

func rangeQuery(field string, r filter.Range) query.Query {
	var (
		lo, hi       *float64
		loInc, hiInc bool
	)
	switch {
	case r.GTE() != nil:
		lo, loInc = r.GTE(), true
	case r.GT() != nil:
		lo = r.GT()
	}
	switch {
	case r.LTE() != nil:
		hi, hiInc = r.LTE(), true
	case r.LT() != nil:
		hi = r.LT()
	}
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &loInc, &hiInc)
	q.SetField(field)
	return q
}

// exists matches documents that carry any value for field.
func (e *Engine) exists(field string) query.Query {
	if field == db.IDField {
		return bleve.NewMatchAllQuery()
	}
	switch e.types[field] {
	case db.IndexFieldNumeric:
		return anyNumber(field)
	case db.IndexFieldBoolean:
		t := bleve.NewBoolFieldQuery(true)
		t.SetField(field)
		f := bleve.NewBoolFieldQuery(false)
		f.SetField(field)
		return bleve.NewDisjunctionQuery(t, f)
	case db.IndexFieldText:
		return anyTerm(field + db.KeywordSuffix)
	case db.IndexFieldKeyword, db.IndexFieldDate:
		return anyTerm(field)
	default:
		// dynamically mapped: string or number
		return bleve.NewDisjunctionQuery(anyTerm(field), anyNumber(field))
	}
}

func anyTerm(field string) query.Query {
	q := bleve.NewWildcardQuery("*")
	q.SetField(field)
	return q
}

func anyNumber(field string) query.Query {
	lo, hi := -math.MaxFloat64, math.MaxFloat64
	inc := true
	q := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inc, &inc)
	q.SetField(field)
	return q
}
