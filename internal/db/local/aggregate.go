package local

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
)

// aggregate computes aggregations by scanning matching documents and
// answers in the Elasticsearch response shapes.
func (e *Engine) aggregate(ctx context.Context, bq query.Query, ops []aggregation.Op) (aggregation.Raw, error) {
	accs := make([]*accumulator, len(ops))
	fieldSet := map[string]struct{}{}
	for i, op := range ops {
		base := strings.TrimSuffix(op.StorageField, db.KeywordSuffix)
		accs[i] = &accumulator{op: op, field: base, freq: map[string]*freqEntry{}, hist: map[float64]int64{}}
		fieldSet[base] = struct{}{}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}

	err := e.scan(ctx, bq, fields, func(h *search.DocumentMatch) {
		for _, a := range accs {
			a.add(h.Fields[a.field])
		}
	})
	if err != nil {
		return nil, err
	}

	raw := make(aggregation.Raw, len(accs))
	for _, a := range accs {
		body, err := json.Marshal(a.result())
		if err != nil {
			return nil, fmt.Errorf("encode aggregation %q: %w", a.op.Key.Name(), err)
		}
		raw[a.op.Key.Name()] = body
	}
	return raw, nil
}

type freqEntry struct {
	key   any
	count int64
}

type accumulator struct {
	op    aggregation.Op
	field string

	present int64
	missing int64
	min     float64
	max     float64
	numbers int64
	freq    map[string]*freqEntry
	hist    map[float64]int64
}

func (a *accumulator) add(v any) {
	values := flatten(v)
	if len(values) == 0 {
		a.missing++
		return
	}
	a.present++

	for _, x := range values {
		if f, ok := x.(float64); ok {
			if a.numbers == 0 || f < a.min {
				a.min = f
			}
			if a.numbers == 0 || f > a.max {
				a.max = f
			}
			a.numbers++
			if h := a.op.Histogram; h != nil && h.Interval > 0 {
				a.hist[math.Floor(f/h.Interval)*h.Interval]++
			}
		}
		k := fmt.Sprint(x)
		if ent, ok := a.freq[k]; ok {
			ent.count++
		} else {
			a.freq[k] = &freqEntry{key: x, count: 1}
		}
	}
}

type bucket struct {
	Key      any   `json:"key"`
	DocCount int64 `json:"doc_count"`
}

func (a *accumulator) result() any {
	switch a.op.Key.Kind {
	case aggregation.DocCount:
		return map[string]int64{"doc_count": a.present}
	case aggregation.Missing:
		return map[string]int64{"doc_count": a.missing}
	case aggregation.Min:
		return map[string]*float64{"value": a.numberOrNil(a.min)}
	case aggregation.Max:
		return map[string]*float64{"value": a.numberOrNil(a.max)}
	case aggregation.Histogram:
		return map[string][]bucket{"buckets": a.histogram()}
	case aggregation.Frequency:
		return map[string][]bucket{"buckets": a.frequency()}
	}
	return map[string]any{}
}

func (a *accumulator) numberOrNil(v float64) *float64 {
	if a.numbers == 0 {
		return nil
	}
	return &v
}

// maxHistogramBuckets bounds the empty buckets filled in across extended bounds.
const maxHistogramBuckets = 10_000

// histogram fills empty buckets across the extended bounds.
func (a *accumulator) histogram() []bucket {
	h := a.op.Histogram
	if h == nil || h.Interval <= 0 {
		return []bucket{}
	}
	keys := map[float64]struct{}{}
	for k := range a.hist {
		keys[k] = struct{}{}
	}
	lo := math.Floor(h.Min/h.Interval) * h.Interval
	hi := math.Floor(h.Max/h.Interval) * h.Interval
	if a.numbers > 0 {
		lo = math.Min(lo, math.Floor(a.min/h.Interval)*h.Interval)
		hi = math.Max(hi, math.Floor(a.max/h.Interval)*h.Interval)
	}
	if (hi-lo)/h.Interval <= maxHistogramBuckets {
		for k := lo; k <= hi; k += h.Interval {
			keys[k] = struct{}{}
		}
	}

	out := make([]bucket, 0, len(keys))
	for k := range keys {
		out = append(out, bucket{Key: k, DocCount: a.hist[k]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.(float64) < out[j].Key.(float64) })
	return out
}

// frequency returns the top buckets by count, ties broken by key.
func (a *accumulator) frequency() []bucket {
	out := make([]bucket, 0, len(a.freq))
	for _, ent := range a.freq {
		out = append(out, bucket{Key: ent.key, DocCount: ent.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocCount != out[j].DocCount {
			return out[i].DocCount > out[j].DocCount
		}
		return fmt.Sprint(out[i].Key) < fmt.Sprint(out[j].Key)
	})
	size := a.op.Size
	if size <= 0 {
		size = aggregation.DefaultFrequencySize
	}
	if len(out) > size {
		out = out[:size]
	}
	return out
}

func flatten(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []any{t}
	default:
		return []any{t}
	}
}
