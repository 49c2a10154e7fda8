package gene

import (
	"context"
	"fmt"
	"strings"
)

// Position is the genomic interval of a gene.
type Position struct {
	Chr   string `json:"chr"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	// GeneID is the canonical identifier when the source reports one.
	GeneID string `json:"gene_id,omitempty"`
}

// NewPosition validates and creates a Position. A "chr" prefix on the contig is stripped.
func NewPosition(chr string, start, end int64) (Position, error) {
	chr = strings.TrimPrefix(strings.TrimSpace(chr), "chr")
	if chr == "" {
		return Position{}, fmt.Errorf("gene contig is required")
	}
	if start < 0 || end < start {
		return Position{}, fmt.Errorf("invalid gene interval %d-%d", start, end)
	}
	return Position{Chr: chr, Start: start, End: end}, nil
}

// Locator resolves a gene symbol or identifier to its interval.
// Implementations return domain.ErrGeneNotFound for unknown genes and
// domain.ErrGeneLookupUnavailable when the source cannot answer.
type Locator interface {
	Locate(ctx context.Context, gene string) (Position, error)
}

// Normalize canonicalizes a gene name for lookup and caching.
func Normalize(gene string) string {
	return strings.ToUpper(strings.TrimSpace(gene))
}
