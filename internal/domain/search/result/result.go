package result

import (
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// Page is one bounded search response.
type Page struct {
	records      []snp.Record
	total        int64
	from         int
	window       int
	aggregations *aggregation.Results
	versions     map[string]string
}

// New creates a page of records starting at offset from out of total matches.
func New(records []snp.Record, total int64, from int) Page {
	return Page{records: records, total: total, from: from}
}

// WithWindow returns a copy that stops offering a next page once the offset reaches limit.
func (p Page) WithWindow(limit int) Page {
	p.window = limit
	return p
}

// WithAggregations returns a copy carrying aggregation results.
func (p Page) WithAggregations(a aggregation.Results) Page {
	p.aggregations = &a
	return p
}

// WithVersions returns a copy carrying data source versions per external field.
func (p Page) WithVersions(v map[string]string) Page {
	p.versions = v
	return p
}

// Records returns the hits in engine order.
func (p Page) Records() []snp.Record { return p.records }

// Total returns the number of matching records.
func (p Page) Total() int64 { return p.total }

// From returns the page offset.
func (p Page) From() int { return p.from }

// NextFrom returns the offset of the following page, or nil when this page is the last one
// or the following page would start at or past the window.
func (p Page) NextFrom() *int {
	next := p.from + len(p.records)
	if len(p.records) == 0 || int64(next) >= p.total {
		return nil
	}
	if p.window > 0 && next >= p.window {
		return nil
	}
	return &next
}

// Aggregations returns aggregation results, or nil when none were requested.
func (p Page) Aggregations() *aggregation.Results { return p.aggregations }

// Versions returns the data source version per requested field that has one.
func (p Page) Versions() map[string]string { return p.versions }
