package export

import (
	"context"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// RecordSource streams records for a selection.
type RecordSource interface {
	Stream(
		ctx context.Context, sel request.Selection, fields []string, limit int,
		yield func(domsnp.Record) error,
	) (int, error)
	ExportColumns(fields []string) ([]string, error)
}

// ArtifactStore uploads a finished artifact and returns a download URL.
type ArtifactStore interface {
	Upload(ctx context.Context, name, filePath, contentType string) (string, error)
}
