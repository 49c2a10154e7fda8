package elastic

import (
	"context"
	"encoding/json"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
)

type searchResponse struct {
	PitID string `json:"pit_id"`
	Hits  struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
			Sort   []any          `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

func (r *searchResponse) hits() []db.Hit {
	out := make([]db.Hit, len(r.Hits.Hits))
	for i, h := range r.Hits.Hits {
		out[i] = db.Hit{ID: h.ID, Source: h.Source, Sort: h.Sort}
	}
	return out
}

// Search runs a bounded from/size search with optional aggregations.
func (s *Store) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	query, err := buildQuery(q.Filter)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	body := M{
		"query":            query,
		"from":             q.From,
		"size":             q.Size,
		"track_total_hits": true,
	}
	if len(q.Fields) > 0 {
		body["_source"] = q.Fields
	}
	if len(q.Aggregations) > 0 {
		body["aggs"] = buildAggs(q.Aggregations)
	}

	r, err := encode(body)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(q.Index),
		s.client.Search.WithBody(r),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	var out searchResponse
	if err := decode(res, db.OpSearch, &out); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return &db.SearchResult{
		Total:        out.Hits.Total.Value,
		Hits:         out.hits(),
		Aggregations: aggregation.Raw(out.Aggregations),
	}, nil
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, q *db.CountQuery) (int64, error) {
	query, err := buildQuery(q.Filter)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	r, err := encode(M{"query": query})
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(q.Index),
		s.client.Count.WithBody(r),
	)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := decode(res, db.OpCount, &out); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return out.Count, nil
}
