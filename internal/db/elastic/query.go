package elastic

import (
	"fmt"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
)

// M is a JSON object in the query DSL.
type M = map[string]any

// buildQuery renders an expression as a bool query.
func buildQuery(expr filter.Expression) (M, error) {
	if expr.IsEmpty() {
		return M{"match_all": M{}}, nil
	}

	b := M{}
	groups := []struct {
		name    string
		clauses []filter.Clause
	}{
		{"must", expr.Must()},
		{"filter", expr.Filter()},
		{"should", expr.Should()},
	}
	for _, g := range groups {
		if len(g.clauses) == 0 {
			continue
		}
		out := make([]M, 0, len(g.clauses))
		for _, c := range g.clauses {
			q, err := clause(c)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		b[g.name] = out
	}
	if len(expr.Should()) > 0 {
		b["minimum_should_match"] = 1
	}
	return M{"bool": b}, nil
}

func clause(c filter.Clause) (M, error) {
	switch c.Kind() {
	case filter.KindTerm:
		if c.Field() == db.IDField {
			return M{"ids": M{"values": []string{c.Value()}}}, nil
		}
		return M{"term": M{c.Field(): c.Value()}}, nil
	case filter.KindTerms:
		return M{"terms": M{c.Field(): c.Values()}}, nil
	case filter.KindRange:
		return M{"range": M{c.Field(): rangeBody(*c.Range())}}, nil
	case filter.KindExists:
		if c.Field() == db.IDField {
			return M{"match_all": M{}}, nil
		}
		return M{"exists": M{"field": c.Field()}}, nil
	case filter.KindIDs:
		return M{"ids": M{"values": c.Values()}}, nil
	case filter.KindMultiMatch:
		return M{"multi_match": M{"query": c.Text(), "fields": c.Fields()}}, nil
	default:
		return nil, fmt.Errorf("unsupported clause kind %q", c.Kind())
	}
}

func rangeBody(r filter.Range) M {
	out := M{}
	if v := r.GT(); v != nil {
		out["gt"] = *v
	}
	if v := r.GTE(); v != nil {
		out["gte"] = *v
	}
	if v := r.LT(); v != nil {
		out["lt"] = *v
	}
	if v := r.LTE(); v != nil {
		out["lte"] = *v
	}
	return out
}

// buildAggs renders aggregation operations keyed by wire name.
func buildAggs(ops []aggregation.Op) M {
	out := make(M, len(ops))
	for _, op := range ops {
		f := op.StorageField
		var body M
		switch op.Key.Kind {
		case aggregation.DocCount:
			body = M{"filter": M{"exists": M{"field": f}}}
		case aggregation.Missing:
			body = M{"missing": M{"field": f}}
		case aggregation.Min:
			body = M{"min": M{"field": f}}
		case aggregation.Max:
			body = M{"max": M{"field": f}}
		case aggregation.Frequency:
			size := op.Size
			if size <= 0 {
				size = aggregation.DefaultFrequencySize
			}
			body = M{"terms": M{"field": f, "size": size, "min_doc_count": op.MinDocCount}}
		case aggregation.Histogram:
			h := aggregation.DefaultHistogram()
			if op.Histogram != nil {
				h = *op.Histogram
			}
			body = M{"histogram": M{
				"field":           f,
				"interval":        h.Interval,
				"extended_bounds": M{"min": h.Min, "max": h.Max},
			}}
		default:
			continue
		}
		out[op.Key.Name()] = body
	}
	return out
}
