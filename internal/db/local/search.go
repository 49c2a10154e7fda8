package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

// Search runs a bounded search sorted by document id.
func (e *Engine) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if err := e.checkIndex(q.Index); err != nil {
		return nil, err
	}
	bq, err := e.buildQuery(q.Filter)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	req := bleve.NewSearchRequestOptions(bq, q.Size, q.From, false)
	req.Fields = fieldsOrAll(q.Fields)
	req.SortBy([]string{db.IDField})

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	out := &db.SearchResult{
		Total: int64(res.Total), //nolint:gosec // document counts fit int64
		Hits:  toHits(res.Hits),
	}

	if len(q.Aggregations) > 0 {
		aggs, err := e.aggregate(ctx, bq, q.Aggregations)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		out.Aggregations = aggs
	}
	return out, nil
}

// Count returns the number of matching documents.
func (e *Engine) Count(ctx context.Context, q *db.CountQuery) (int64, error) {
	if err := e.checkIndex(q.Index); err != nil {
		return 0, err
	}
	bq, err := e.buildQuery(q.Filter)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	req := bleve.NewSearchRequestOptions(bq, 0, 0, false)
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return int64(res.Total), nil //nolint:gosec // document counts fit int64
}

// scan visits every document matching bq in id order, loading fields.
func (e *Engine) scan(ctx context.Context, bq query.Query, fields []string, visit func(*search.DocumentMatch)) error {
	var after []string
	seen := 0
	for {
		req := bleve.NewSearchRequestOptions(bq, scanBatch, 0, false)
		req.Fields = fields
		req.SortBy([]string{db.IDField})
		if after != nil {
			req.SetSearchAfter(after)
		}

		res, err := e.index.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		for _, h := range res.Hits {
			visit(h)
		}
		seen += len(res.Hits)
		if len(res.Hits) < scanBatch {
			return nil
		}
		if seen >= maxScan {
			return fmt.Errorf("scan exceeds %d documents", maxScan)
		}
		after = res.Hits[len(res.Hits)-1].Sort
	}
}

func fieldsOrAll(fields []string) []string {
	if len(fields) == 0 {
		return []string{"*"}
	}
	return fields
}

func toHits(in search.DocumentMatchCollection) []db.Hit {
	out := make([]db.Hit, 0, len(in))
	for _, h := range in {
		src := make(map[string]any, len(h.Fields))
		for k, v := range h.Fields {
			if strings.HasSuffix(k, db.KeywordSuffix) {
				continue
			}
			src[k] = v
		}
		var sort []any
		if len(h.Sort) > 0 {
			sort = make([]any, len(h.Sort))
			for i, s := range h.Sort {
				sort[i] = s
			}
		}
		out = append(out, db.Hit{ID: h.ID, Source: src, Sort: sort})
	}
	return out
}
