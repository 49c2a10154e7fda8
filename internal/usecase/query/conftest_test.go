package query

import (
	"context"
	"strings"
	"testing"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
)

const testTree = `[
  {"id": 1, "name": "Basic Info", "leaf": false, "version": "hg38"},
  {"id": 2, "parent_id": 1, "name": "chr", "leaf": true, "keyword_searchable": true},
  {"id": 3, "parent_id": 1, "name": "pos", "leaf": true, "field_type": "number"},
  {"id": 4, "parent_id": 1, "name": "rs_dbSNP151", "leaf": true, "keyword_searchable": true},
  {"name": "ANNOVAR_ensembl_Gene_ID", "leaf": true, "keyword_searchable": true},
  {"name": "ANNOVAR_ensembl_Closest_gene(intergenic_only)", "leaf": true, "keyword_searchable": true},
  {"name": "note", "leaf": true, "keyword_searchable": true},
  {"name": "1000Gp3_AF", "leaf": true, "field_type": "number"}
]`

func newTestMapper(t *testing.T) *attribute.Mapper {
	t.Helper()
	reg, err := attribute.Load(strings.NewReader(testTree), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return attribute.NewMapper(reg, nil)
}

// mockLocator implements GeneLocator.
type mockLocator struct {
	locateFn func(ctx context.Context, name string) (gene.Position, error)
	calls    []string
}

func (m *mockLocator) Locate(ctx context.Context, name string) (gene.Position, error) {
	m.calls = append(m.calls, name)
	if m.locateFn != nil {
		return m.locateFn(ctx, name)
	}
	return gene.Position{}, nil
}
