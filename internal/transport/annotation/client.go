package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
	"github.com/USCbiostats/annoq-api-v2/internal/metrics"
)

const (
	source          = "api"
	maxResponseBody = 1 << 20
)

// Client resolves gene positions through the annotation service HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Config holds the annotation service settings.
type Config struct {
	BaseURL    string
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates an annotation API client. A non-positive rate disables limiting.
func NewClient(cfg *Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid annotation api url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: base,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// geneResponse mirrors the annotation service gene endpoint.
type geneResponse struct {
	GeneInfo *struct {
		GeneID string          `json:"gene_id"`
		Contig string          `json:"contig"`
		Start  json.RawMessage `json:"start"`
		End    json.RawMessage `json:"end"`
	} `json:"gene_info"`
}

// Locate implements gene.Locator.
// 404 and an empty gene_info are not found; transport failures and 5xx are unavailable.
func (c *Client) Locate(ctx context.Context, name string) (gene.Position, error) {
	start := time.Now()
	pos, err := c.locate(ctx, name)
	metrics.GeneLookupDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.GeneLookupsTotal.WithLabelValues(source, "found").Inc()
	case errors.Is(err, domain.ErrGeneNotFound):
		metrics.GeneLookupsTotal.WithLabelValues(source, "not_found").Inc()
	default:
		metrics.GeneLookupsTotal.WithLabelValues(source, "unavailable").Inc()
		c.logger.Warn("Gene lookup failed", zap.String("gene", name), zap.Error(err))
	}
	return pos, err
}

func (c *Client) locate(ctx context.Context, name string) (gene.Position, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return gene.Position{}, fmt.Errorf("%w: empty gene", domain.ErrGeneNotFound)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return gene.Position{}, fmt.Errorf("%w: rate limit wait: %w", domain.ErrGeneLookupUnavailable, err)
	}

	u := c.baseURL + "/gene?" + url.Values{"gene": {name}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return gene.Position{}, fmt.Errorf("%w: build request: %w", domain.ErrGeneLookupUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gene.Position{}, fmt.Errorf("%w: %w", domain.ErrGeneLookupUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return gene.Position{}, fmt.Errorf("%w: %s", domain.ErrGeneNotFound, name)
	case resp.StatusCode != http.StatusOK:
		return gene.Position{}, fmt.Errorf("%w: annotation api status %d", domain.ErrGeneLookupUnavailable, resp.StatusCode)
	}

	var body geneResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return gene.Position{}, fmt.Errorf("%w: decode response: %w", domain.ErrGeneLookupUnavailable, err)
	}
	if body.GeneInfo == nil || body.GeneInfo.Contig == "" {
		return gene.Position{}, fmt.Errorf("%w: %s", domain.ErrGeneNotFound, name)
	}

	startPos, err1 := parseCoordinate(body.GeneInfo.Start)
	endPos, err2 := parseCoordinate(body.GeneInfo.End)
	if err := errors.Join(err1, err2); err != nil {
		return gene.Position{}, fmt.Errorf("%w: %w", domain.ErrGeneLookupUnavailable, err)
	}

	pos, err := gene.NewPosition(body.GeneInfo.Contig, startPos, endPos)
	if err != nil {
		return gene.Position{}, fmt.Errorf("%w: %w", domain.ErrGeneLookupUnavailable, err)
	}
	pos.GeneID = body.GeneInfo.GeneID
	return pos, nil
}

// parseCoordinate accepts a JSON number or a numeric string.
func parseCoordinate(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return n, nil
}
