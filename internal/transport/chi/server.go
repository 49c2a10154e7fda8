package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/request"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
	logpkg "github.com/USCbiostats/annoq-api-v2/internal/logger"
	exportuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/export"
	healthuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/health"
	snpuc "github.com/USCbiostats/annoq-api-v2/internal/usecase/snp"
)

// ExportStatusTrailer is the trailer that reports how an inline download ended.
const ExportStatusTrailer = "X-Export-Status"

// Config holds request limits enforced at the edge.
type Config struct {
	Limits request.Limits
	// MaxExportRecords caps inline downloads; <= 0 leaves the cap to the streamer.
	MaxExportRecords int
}

// Server serves the SNP query API.
type Server struct {
	snps          SNPSearcher
	exports       Exporter
	genes         GeneLocator
	health        HealthChecker
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. genes can be nil; GET /gene then reports 503.
func NewServer(
	snps SNPSearcher,
	exports Exporter,
	genes GeneLocator,
	health HealthChecker,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		snps:          snps,
		exports:       exports,
		genes:         genes,
		health:        health,
		cfg:           cfg,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Mount registers every route on r.
func (s *Server) Mount(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/snpAttributes", s.ListAttributes)
	r.Get("/gene", s.LocateGene)
	r.Post("/snp/search", s.SearchSNPs)
	r.Get("/snp/{mode}", s.GetSNPs)
	r.Get("/count/{mode}", s.CountSNPs)
	r.Get("/download/{mode}", s.DownloadSNPs)
	r.Post("/export", s.ExportSNPs)
}

// GetSNPs handles GET /snp/{mode}.
func (s *Server) GetSNPs(w http.ResponseWriter, r *http.Request) {
	m := mode.Mode(gochi.URLParam(r, "mode"))
	req, err := searchRequestFromQuery(m, r.URL.Query(), s.cfg.Limits)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.search(w, r, req, nil)
}

// SearchSNPs handles POST /snp/search.
func (s *Server) SearchSNPs(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := decodeBody(r, w, &body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	req, aggs, err := body.request(s.cfg.Limits)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.search(w, r, req, aggs)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req request.Request, aggs *snpuc.Aggregations) {
	page, err := s.snps.Search(r.Context(), req, aggs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	records := page.Records()
	if records == nil {
		records = []domsnp.Record{}
	}
	total := page.Total()
	writeJSON(w, http.StatusOK, envelope{
		Success:      true,
		Details:      records,
		Total:        &total,
		NextFrom:     page.NextFrom(),
		Aggregations: page.Aggregations(),
		Version:      page.Versions(),
	})
}

// CountSNPs handles GET /count/{mode}.
func (s *Server) CountSNPs(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(mode.Mode(gochi.URLParam(r, "mode")), r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	n, err := s.snps.Count(r.Context(), sel)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Total: &n})
}

// DownloadSNPs handles GET /download/{mode}: a chunked export of every match.
// Failures after the first byte cannot change the status, so the outcome goes into the
// X-Export-Status trailer.
func (s *Server) DownloadSNPs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sel, err := selectionFromQuery(mode.Mode(gochi.URLParam(r, "mode")), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	fields, err := parseFields(q.Get(paramFields))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	var format string
	var limit int
	if err := bind(q, paramFormat, false, &format); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := bind(q, paramMaxRecords, false, &limit); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	f, err := exportuc.ParseFormat(format)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if s.cfg.MaxExportRecords > 0 && (limit <= 0 || limit > s.cfg.MaxExportRecords) {
		limit = s.cfg.MaxExportRecords
	}

	h := w.Header()
	h.Set("Content-Type", f.ContentType())
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "snps."+f.Extension()))
	h.Set("Trailer", ExportStatusTrailer)

	flush := func() {}
	if fl, ok := w.(http.Flusher); ok {
		flush = fl.Flush
	}

	logger := logpkg.FromContextOr(r.Context(), s.logger)
	n, err := s.exports.Write(r.Context(), w, flush, exportuc.Job{
		Selection: sel,
		Fields:    fields,
		Format:    f,
		Limit:     limit,
	})
	if err != nil && n == 0 && !isPartial(err) {
		h.Del("Content-Disposition")
		h.Del("Trailer")
		s.handleDomainError(w, r, err)
		return
	}
	if err != nil {
		logger.Warn("Download ended early", zap.Int("records", n), zap.Error(err))
		h.Set(ExportStatusTrailer, "partial; records="+strconv.Itoa(n))
		return
	}
	h.Set(ExportStatusTrailer, "complete; records="+strconv.Itoa(n))
}

func isPartial(err error) bool {
	var p *domain.PartialDeliveryError
	return errors.As(err, &p)
}

// ExportSNPs handles POST /export: writes an artifact and returns where to fetch it.
func (s *Server) ExportSNPs(w http.ResponseWriter, r *http.Request) {
	var body exportBody
	if err := decodeBody(r, w, &body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	sel, err := body.selection()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	f, err := exportuc.ParseFormat(body.Format)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	art, err := s.exports.Export(r.Context(), exportuc.Job{
		Selection: sel,
		Fields:    body.Fields,
		Format:    f,
		Limit:     body.MaxRecords,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	total := int64(art.Records)
	writeJSON(w, http.StatusOK, envelope{Success: true, Details: art, Total: &total})
}

type attributeView struct {
	APILabel     string `json:"api_label"`
	StorageLabel string `json:"storage_label"`
	DisplayLabel string `json:"display_label"`
	Definition   string `json:"definition,omitempty"`
	DataType     string `json:"data_type"`
	Searchable   bool   `json:"searchable"`
	Version      string `json:"version,omitempty"`
}

func attributeToView(d attribute.Descriptor) attributeView {
	return attributeView{
		APILabel:     d.ExternalName(),
		StorageLabel: d.StorageName(),
		DisplayLabel: d.DisplayLabel(),
		Definition:   d.Definition(),
		DataType:     string(d.Type()),
		Searchable:   d.Searchable(),
		Version:      d.Version(),
	}
}

// ListAttributes handles GET /snpAttributes.
func (s *Server) ListAttributes(w http.ResponseWriter, r *http.Request) {
	descs := s.snps.Attributes()
	items := make([]attributeView, len(descs))
	for i, d := range descs {
		items[i] = attributeToView(d)
	}
	total := int64(len(items))
	writeJSON(w, http.StatusOK, envelope{Success: true, Details: items, Total: &total})
}

// LocateGene handles GET /gene?gene=X.
func (s *Server) LocateGene(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := bind(r.URL.Query(), "gene", true, &name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if s.genes == nil {
		s.handleDomainError(w, r, fmt.Errorf("%w: no gene locator configured", domain.ErrGeneLookupUnavailable))
		return
	}
	pos, err := s.genes.Locate(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Details: pos})
}

type healthResponse struct {
	Status     healthuc.Status                 `json:"status"`
	Checks     map[string]healthuc.CheckResult `json:"checks"`
	Attributes int                             `json:"attributes"`
}

// HealthCheck handles GET /health. A degraded service still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: report.Status, Checks: report.Checks, Attributes: report.Attributes})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
