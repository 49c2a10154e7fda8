package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means the gene cache is down; searches still work, gene lookups go to the source.
	Degraded Status = "degraded"
	// Unhealthy means the search engine is unreachable.
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one component probe.
type CheckResult string

const (
	// CheckOK indicates a passing probe.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing or timed-out probe.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentSearch    = "search"
	ComponentGeneCache = "gene_cache"
)

// DefaultProbeTimeout bounds each component probe.
const DefaultProbeTimeout = 2 * time.Second

// Report aggregates probe results.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	Attributes int
}

// Option configures a Service.
type Option func(*Service)

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAttributeCount reports the size of the loaded attribute registry.
func WithAttributeCount(n int) Option {
	return func(s *Service) { s.attributes = n }
}

// Service probes the search engine and the optional gene cache.
type Service struct {
	engine     Pinger
	cache      Pinger
	timeout    time.Duration
	attributes int
}

// New creates a Service. cache can be nil when no gene cache is configured.
func New(engine, cache Pinger, opts ...Option) *Service {
	s := &Service{engine: engine, cache: cache, timeout: DefaultProbeTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check probes every component concurrently.
// A failing engine makes the report Unhealthy; a failing cache only Degraded.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]Pinger{ComponentSearch: s.engine}
	if s.cache != nil {
		probes[ComponentGeneCache] = s.cache
	}

	var mu sync.Mutex
	checks := make(map[string]CheckResult, len(probes))
	var g errgroup.Group
	for name, p := range probes {
		g.Go(func() error {
			res := s.probe(ctx, p)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case checks[ComponentSearch] == CheckError:
		status = Unhealthy
	case checks[ComponentGeneCache] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Attributes: s.attributes}
}

func (s *Service) probe(ctx context.Context, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
