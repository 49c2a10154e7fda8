package export

import (
	"context"
	"errors"
	"testing"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

func testSelection(t *testing.T) request.Selection {
	t.Helper()
	sel, err := request.NewSelection(mode.Chromosome,
		request.Params{Chromosome: &request.Chromosome{Chr: "2", Start: 1, End: 100}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sel
}

func testRecords(n int) []domsnp.Record {
	out := make([]domsnp.Record, n)
	for i := range out {
		out[i] = domsnp.NewRecord(
			"2:"+string(rune('a'+i%26)),
			map[string]any{"chr": "2", "pos": float64(100 + i)},
		)
	}
	return out
}

// --- Mocks ---

type mockSource struct {
	records []domsnp.Record
	// failAfter delivers this many records then fails; -1 disables.
	failAfter int
	colsErr   error

	gotFields []string
	gotLimit  int
}

func newMockSource(records []domsnp.Record) *mockSource {
	return &mockSource{records: records, failAfter: -1}
}

func (m *mockSource) ExportColumns(fields []string) ([]string, error) {
	if m.colsErr != nil {
		return nil, m.colsErr
	}
	if len(fields) == 0 {
		return []string{"id", "chr", "pos"}, nil
	}
	return append([]string{"id"}, fields...), nil
}

func (m *mockSource) Stream(
	ctx context.Context, _ request.Selection, fields []string, limit int, yield func(domsnp.Record) error,
) (int, error) {
	m.gotFields = fields
	m.gotLimit = limit
	n := 0
	for _, rec := range m.records {
		if limit > 0 && n >= limit {
			break
		}
		if m.failAfter >= 0 && n == m.failAfter {
			err := errors.New("connection reset")
			if n > 0 {
				return n, &domain.PartialDeliveryError{Delivered: n, Err: err}
			}
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := yield(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

type mockStore struct {
	uploadFn func(ctx context.Context, name, filePath, contentType string) (string, error)

	name, path, contentType string
}

func (m *mockStore) Upload(ctx context.Context, name, filePath, contentType string) (string, error) {
	m.name, m.path, m.contentType = name, filePath, contentType
	if m.uploadFn != nil {
		return m.uploadFn(ctx, name, filePath, contentType)
	}
	return "https://store.example/" + name, nil
}
