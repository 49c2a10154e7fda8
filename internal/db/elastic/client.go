package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

// Compile-time check: Store implements db.Engine.
var _ db.Engine = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addrs          []string
	Username       string
	Password       string
	APIKey         string
	MaxRetries     int
	RequestTimeout time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Store implements db.Engine via go-elasticsearch.
type Store struct {
	client *elasticsearch.Client
}

// NewStore creates an Elasticsearch store. Transport-level retries with
// exponential backoff are configured once here for every call.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = cfg.RequestTimeout
		transport = t
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Addrs,
		Username:      cfg.Username,
		Password:      cfg.Password,
		APIKey:        cfg.APIKey,
		Transport:     transport,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		RetryBackoff:  backoff,
		Logger:        &transportLogger{logger: logger.Named("elastic")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// backoff doubles from 100ms up to 5s.
func backoff(attempt int) time.Duration {
	d := 100 * time.Millisecond << min(max(attempt-1, 0), 6)
	return min(d, 5*time.Second)
}

// Ping checks cluster connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// Close is a no-op; the HTTP transport holds no resources that need releasing.
func (s *Store) Close() {}

// apiError is the error envelope returned by Elasticsearch.
type apiError struct {
	Status int `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// decode reads a successful response into out, or turns an error response of op into an error.
func decode(res *esapi.Response, op string, out any) error {
	defer closeBody(res)
	if res.IsError() {
		return responseError(res, op)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError maps an error response. A 404 without an error body means a missing
// point in time for snapshot operations and a missing index otherwise.
func responseError(res *esapi.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error.Type != "" {
		switch e.Error.Type {
		case "index_not_found_exception":
			return fmt.Errorf("%w: %s", db.ErrIndexNotFound, e.Error.Reason)
		case "search_context_missing_exception":
			return fmt.Errorf("%w: %s", db.ErrSnapshotNotFound, e.Error.Reason)
		}
		return fmt.Errorf("status %d: %s: %s", res.StatusCode, e.Error.Type, e.Error.Reason)
	}
	if res.StatusCode == http.StatusNotFound {
		if op == db.OpSearchAfter || op == db.OpCloseSnapshot {
			return fmt.Errorf("%w: status 404", db.ErrSnapshotNotFound)
		}
		return fmt.Errorf("%w: status 404", db.ErrIndexNotFound)
	}
	return fmt.Errorf("status %d", res.StatusCode)
}

func encode(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return &buf, nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

// keepAlive renders a duration in Elasticsearch time units.
func keepAlive(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}
