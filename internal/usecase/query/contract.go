package query

import (
	"context"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
)

// GeneLocator resolves a gene to its genomic interval.
type GeneLocator interface {
	Locate(ctx context.Context, gene string) (gene.Position, error)
}
