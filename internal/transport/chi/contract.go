package chi

import (
	"context"
	"io"

	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/result"
	exportuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/export"
	healthuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/health"
	snpuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/snp"
)

// SNPSearcher serves pages, counts and the attribute listing.
type SNPSearcher interface {
	Search(ctx context.Context, req request.Request, aggs *snpuc.Aggregations) (result.Page, error)
	Count(ctx context.Context, sel request.Selection) (int64, error)
	Attributes() []attribute.Descriptor
}

// Exporter writes exports inline or as artifacts.
type Exporter interface {
	Write(ctx context.Context, w io.Writer, flush func(), job exportuc.Job) (int, error)
	Export(ctx context.Context, job exportuc.Job) (exportuc.Artifact, error)
}

// GeneLocator resolves gene names for GET /gene.
type GeneLocator interface {
	Locate(ctx context.Context, name string) (gene.Position, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
