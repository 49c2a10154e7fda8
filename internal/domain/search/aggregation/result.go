package aggregation

import (
	"encoding/json"
	"fmt"
)

// Bucket is one histogram or frequency bucket.
type Bucket struct {
	Key      any   `json:"key"`
	DocCount int64 `json:"doc_count"`
}

// Result collects the sub-aggregations of one field. Unrequested kinds stay nil.
type Result struct {
	DocCount  *int64   `json:"doc_count,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Histogram []Bucket `json:"histogram,omitempty"`
	Frequency []Bucket `json:"frequency,omitempty"`
	Missing   *int64   `json:"missing,omitempty"`
}

// Results holds parsed aggregations per external field plus the global histogram.
type Results struct {
	Fields    map[string]Result `json:"fields,omitempty"`
	Histogram []Bucket          `json:"histogram,omitempty"`
}

// Raw is an engine response: aggregation name to its JSON body.
// Bodies follow the Elasticsearch shapes: {"doc_count"}, {"value"}, {"buckets":[...]}.
type Raw map[string]json.RawMessage

type rawBody struct {
	DocCount *int64      `json:"doc_count"`
	Value    *float64    `json:"value"`
	Buckets  []rawBucket `json:"buckets"`
}

type rawBucket struct {
	Key      any   `json:"key"`
	DocCount int64 `json:"doc_count"`
}

// Parse turns a raw response into typed results using the plan that produced the request.
// Names absent from the response are skipped; names not in the plan are ignored.
func Parse(plan Plan, raw Raw) (Results, error) {
	out := Results{Fields: make(map[string]Result)}
	for name, body := range raw {
		key, ok := plan.Lookup(name)
		if !ok {
			continue
		}
		var b rawBody
		if err := json.Unmarshal(body, &b); err != nil {
			return Results{}, fmt.Errorf("decode aggregation %q: %w", name, err)
		}

		if key.Field == "" {
			out.Histogram = buckets(b.Buckets)
			continue
		}

		r := out.Fields[key.Field]
		switch key.Kind {
		case DocCount:
			r.DocCount = b.DocCount
		case Missing:
			r.Missing = b.DocCount
		case Min:
			r.Min = b.Value
		case Max:
			r.Max = b.Value
		case Histogram:
			r.Histogram = buckets(b.Buckets)
		case Frequency:
			r.Frequency = buckets(b.Buckets)
		}
		out.Fields[key.Field] = r
	}
	return out, nil
}

func buckets(in []rawBucket) []Bucket {
	out := make([]Bucket, len(in))
	for i, b := range in {
		out[i] = Bucket(b)
	}
	return out
}
