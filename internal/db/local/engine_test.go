package local

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/filter"
)

const testIndex = "annoq-test"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	schema := db.NewIndex(testIndex).
		Text("chr").
		Numeric("pos").
		Keyword("ref").
		Keyword("alt").
		Text("rs_dbSNP151").
		Text("ANNOVAR_ensembl_Gene_ID").
		Text("note").
		Numeric("1000Gp3_AF").
		MustBuild()

	e, err := Open(Config{Schema: schema})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	docs := []db.Document{
		{ID: "2:10662G>C", Fields: map[string]any{
			"chr": "2", "pos": "10662", "ref": "G", "alt": "C", "rs_dbSNP151": "rs1",
			"ANNOVAR_ensembl_Gene_ID": "BRCA1", "1000Gp3_AF": 0.25,
		}},
		{ID: "2:10632C>A", Fields: map[string]any{
			"chr": "2", "pos": 10632.0, "ref": "C", "alt": "A", "rs_dbSNP151": "rs2",
			"note": "near BRCA1",
		}},
		{ID: "2:5A>G", Fields: map[string]any{"chr": "2", "pos": 5.0, "ref": "A", "alt": "G"}},
		{ID: "3:10662A>T", Fields: map[string]any{
			"chr": "3", "pos": 10662.0, "ref": "A", "alt": "T", "rs_dbSNP151": "rs3", "1000Gp3_AF": 0.75,
		}},
	}
	require.NoError(t, e.IndexDocuments(context.Background(), docs))
	return e
}

func chrRange(t *testing.T, chr string, lo, hi float64) filter.Expression {
	t.Helper()
	term, err := filter.NewTerm("chr", chr)
	require.NoError(t, err)
	r, err := filter.Inclusive(lo, hi)
	require.NoError(t, err)
	rng, err := filter.NewRange("pos", r)
	require.NoError(t, err)
	expr, err := filter.NewExpression(nil, []filter.Clause{term, rng}, nil)
	require.NoError(t, err)
	return expr
}

func hitIDs(hits []db.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestEngine_Schema(t *testing.T) {
	e := newTestEngine(t)
	schema := e.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, testIndex, schema.Name)
	assert.Len(t, schema.Fields, 8)
	assert.Contains(t, schema.String(), "1000Gp3_AF NUMERIC")
}

func TestSearch_ChromosomeRange(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), &db.SearchQuery{
		Index: testIndex, Filter: chrRange(t, "2", 10, 100000), Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, []string{"2:10632C>A", "2:10662G>C"}, hitIDs(res.Hits))

	hit := res.Hits[1]
	assert.Equal(t, "2", hit.Source["chr"])
	assert.InDelta(t, 10662.0, hit.Source["pos"], 0)
}

func TestSearch_IDs(t *testing.T) {
	e := newTestEngine(t)

	ids, err := filter.NewIDs([]string{"2:10662G>C", "2:10632C>A", "9:1X>Y"})
	require.NoError(t, err)
	expr, _ := filter.NewExpression(nil, []filter.Clause{ids}, nil)

	res, err := e.Search(context.Background(), &db.SearchQuery{Index: testIndex, Filter: expr, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
}

func TestSearch_Terms(t *testing.T) {
	e := newTestEngine(t)

	terms, err := filter.NewTerms("rs_dbSNP151", []string{"rs1", "rs3"})
	require.NoError(t, err)
	expr, _ := filter.NewExpression(nil, []filter.Clause{terms}, nil)

	res, err := e.Search(context.Background(), &db.SearchQuery{Index: testIndex, Filter: expr, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"2:10662G>C", "3:10662A>T"}, hitIDs(res.Hits))
}

func TestSearch_KeywordRestrictedToFields(t *testing.T) {
	e := newTestEngine(t)

	mm, err := filter.NewMultiMatch("BRCA1", []string{"ANNOVAR_ensembl_Gene_ID"})
	require.NoError(t, err)
	expr, _ := filter.NewExpression([]filter.Clause{mm}, nil, nil)

	res, err := e.Search(context.Background(), &db.SearchQuery{Index: testIndex, Filter: expr, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"2:10662G>C"}, hitIDs(res.Hits), "note field must not match")

	both, _ := filter.NewMultiMatch("BRCA1", []string{"ANNOVAR_ensembl_Gene_ID", "note"})
	expr, _ = filter.NewExpression([]filter.Clause{both}, nil, nil)
	res, err = e.Search(context.Background(), &db.SearchQuery{Index: testIndex, Filter: expr, Size: 10})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
}

func TestSearch_Exists(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		field string
		want  int64
	}{
		{"rs_dbSNP151", 3},
		{"1000Gp3_AF", 2},
		{"note", 1},
		{db.IDField, 4},
		{"unmapped", 0},
	}
	for _, tc := range tests {
		t.Run(tc.field, func(t *testing.T) {
			ex, err := filter.NewExists(tc.field)
			require.NoError(t, err)
			expr, _ := filter.NewExpression(nil, []filter.Clause{ex}, nil)
			n, err := e.Count(context.Background(), &db.CountQuery{Index: testIndex, Filter: expr})
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestSearch_Pagination(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), &db.SearchQuery{
		Index: testIndex, Filter: filter.Expression{}, From: 1, Size: 2, Fields: []string{"chr"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)
	assert.Equal(t, []string{"2:10662G>C", "2:5A>G"}, hitIDs(res.Hits))
	_, hasPos := res.Hits[0].Source["pos"]
	assert.False(t, hasPos, "only requested fields are returned")
}

func TestSearch_UnknownIndex(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Search(context.Background(), &db.SearchQuery{Index: "other", Size: 1})
	assert.True(t, errors.Is(err, db.ErrIndexNotFound))
}

func TestSearch_Aggregations(t *testing.T) {
	e := newTestEngine(t)

	hist := aggregation.HistogramSpec{Interval: 10000, Min: 0, Max: 20000}
	ops := []aggregation.Op{
		{Key: aggregation.Key{Field: "x_1000Gp3_AF", Kind: aggregation.DocCount}, StorageField: "1000Gp3_AF"},
		{Key: aggregation.Key{Field: "x_1000Gp3_AF", Kind: aggregation.Min}, StorageField: "1000Gp3_AF"},
		{Key: aggregation.Key{Field: "x_1000Gp3_AF", Kind: aggregation.Max}, StorageField: "1000Gp3_AF"},
		{Key: aggregation.Key{Field: "chr", Kind: aggregation.Frequency}, StorageField: "chr.keyword", Size: 20},
		{Key: aggregation.Key{Field: "chr", Kind: aggregation.Missing}, StorageField: "chr.keyword"},
		{Key: aggregation.Key{Kind: aggregation.Histogram}, StorageField: "pos", Histogram: &hist},
	}
	plan, err := aggregation.NewPlan(ops)
	require.NoError(t, err)

	res, err := e.Search(context.Background(), &db.SearchQuery{
		Index: testIndex, Filter: filter.Expression{}, Size: 0, Aggregations: ops,
	})
	require.NoError(t, err)

	parsed, err := aggregation.Parse(plan, res.Aggregations)
	require.NoError(t, err)

	af := parsed.Fields["x_1000Gp3_AF"]
	require.NotNil(t, af.DocCount)
	assert.Equal(t, int64(2), *af.DocCount)
	require.NotNil(t, af.Min)
	assert.InDelta(t, 0.25, *af.Min, 1e-9)
	require.NotNil(t, af.Max)
	assert.InDelta(t, 0.75, *af.Max, 1e-9)

	chr := parsed.Fields["chr"]
	require.Len(t, chr.Frequency, 2)
	assert.Equal(t, "2", chr.Frequency[0].Key)
	assert.Equal(t, int64(3), chr.Frequency[0].DocCount)
	require.NotNil(t, chr.Missing)
	assert.Equal(t, int64(0), *chr.Missing)

	require.Len(t, parsed.Histogram, 3)
	assert.Equal(t, int64(1), parsed.Histogram[0].DocCount)
	assert.Equal(t, int64(3), parsed.Histogram[1].DocCount)
	assert.Equal(t, int64(0), parsed.Histogram[2].DocCount)
}

func TestSnapshot_Scan(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, err := e.OpenSnapshot(ctx, testIndex, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, e.OpenSnapshots())

	var (
		after []any
		seen  []string
	)
	for {
		page, err := e.SearchSnapshot(ctx, &db.SnapshotQuery{
			Snapshot: id, Filter: filter.Expression{}, Size: 3, KeepAlive: time.Minute, After: after,
		})
		require.NoError(t, err)
		assert.Equal(t, id, page.Snapshot)
		if len(page.Hits) == 0 {
			break
		}
		seen = append(seen, hitIDs(page.Hits)...)
		after = page.Hits[len(page.Hits)-1].Sort
	}
	assert.Equal(t, []string{"2:10632C>A", "2:10662G>C", "2:5A>G", "3:10662A>T"}, seen)

	require.NoError(t, e.CloseSnapshot(ctx, id))
	assert.Equal(t, 0, e.OpenSnapshots())
	assert.True(t, errors.Is(e.CloseSnapshot(ctx, id), db.ErrSnapshotNotFound))
}

func TestSnapshot_Expires(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	id, err := e.OpenSnapshot(context.Background(), testIndex, time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = e.SearchSnapshot(context.Background(), &db.SnapshotQuery{Snapshot: id, Size: 1})
	assert.True(t, errors.Is(err, db.ErrSnapshotNotFound))
}

func TestAggregate_BodiesAreJSON(t *testing.T) {
	e := newTestEngine(t)
	ops := []aggregation.Op{{Key: aggregation.Key{Field: "pos", Kind: aggregation.Min}, StorageField: "pos"}}
	bq, err := e.buildQuery(chrRange(t, "9", 0, 1))
	require.NoError(t, err)

	raw, err := e.aggregate(context.Background(), bq, ops)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw["pos_min"], &body))
	assert.Nil(t, body["value"], "min over no documents is null")
}
