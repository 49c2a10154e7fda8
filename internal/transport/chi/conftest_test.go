package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gochi "github.com/go-chi/chi/v5"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/result"
	exportuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/export"
	healthuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/health"
	snpuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/snp"
)

const testTree = `[
  {"id": 1, "name": "Basic Info", "leaf": false, "version": "hg38"},
  {"id": 2, "parent_id": 1, "name": "chr", "leaf": true, "keyword_searchable": true},
  {"id": 3, "parent_id": 1, "name": "pos", "leaf": true, "field_type": "number", "label": "Position"},
  {"name": "1000Gp3_AF", "leaf": true, "field_type": "number", "detail": "Allele frequency"}
]`

// --- Mocks ---

type mockSNPs struct {
	searchFn func(ctx context.Context, req request.Request, aggs *snpuc.Aggregations) (result.Page, error)
	countFn  func(ctx context.Context, sel request.Selection) (int64, error)
	attrs    []attribute.Descriptor

	lastReq  request.Request
	lastAggs *snpuc.Aggregations
	lastSel  request.Selection
}

func (m *mockSNPs) Search(ctx context.Context, req request.Request, aggs *snpuc.Aggregations) (result.Page, error) {
	m.lastReq, m.lastAggs = req, aggs
	if m.searchFn != nil {
		return m.searchFn(ctx, req, aggs)
	}
	return result.New(nil, 0, req.From()), nil
}

func (m *mockSNPs) Count(ctx context.Context, sel request.Selection) (int64, error) {
	m.lastSel = sel
	if m.countFn != nil {
		return m.countFn(ctx, sel)
	}
	return 0, nil
}

func (m *mockSNPs) Attributes() []attribute.Descriptor { return m.attrs }

type mockExporter struct {
	writeFn  func(ctx context.Context, w io.Writer, flush func(), job exportuc.Job) (int, error)
	exportFn func(ctx context.Context, job exportuc.Job) (exportuc.Artifact, error)

	lastJob exportuc.Job
}

func (m *mockExporter) Write(ctx context.Context, w io.Writer, flush func(), job exportuc.Job) (int, error) {
	m.lastJob = job
	if m.writeFn != nil {
		return m.writeFn(ctx, w, flush, job)
	}
	return 0, nil
}

func (m *mockExporter) Export(ctx context.Context, job exportuc.Job) (exportuc.Artifact, error) {
	m.lastJob = job
	if m.exportFn != nil {
		return m.exportFn(ctx, job)
	}
	return exportuc.Artifact{}, nil
}

type mockLocator struct {
	locateFn func(ctx context.Context, name string) (gene.Position, error)
}

func (m *mockLocator) Locate(ctx context.Context, name string) (gene.Position, error) {
	return m.locateFn(ctx, name)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type fixture struct {
	snps    *mockSNPs
	exports *mockExporter
	genes   *mockLocator
	health  *mockHealth
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := attribute.Load(strings.NewReader(testTree), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := &fixture{
		snps:    &mockSNPs{attrs: reg.Descriptors()},
		exports: &mockExporter{},
		genes:   &mockLocator{},
		health:  &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	srv := NewServer(f.snps, f.exports, f.genes, f.health, Config{
		Limits:           request.DefaultLimits(),
		MaxExportRecords: 1000,
	}, nil)
	r := gochi.NewRouter()
	srv.Mount(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// decoded is the client view of an envelope.
type decoded struct {
	Success      bool              `json:"success"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	Details      json.RawMessage   `json:"details"`
	Total        *int64            `json:"total"`
	NextFrom     *int              `json:"next_from"`
	Aggregations json.RawMessage   `json:"aggregations"`
	Version      map[string]string `json:"version"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) decoded {
	t.Helper()
	var d decoded
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return d
}
