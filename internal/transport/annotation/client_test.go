package annotation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterMetrics()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(&Config{BaseURL: srv.URL + "/", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestClient_Locate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gene" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("gene"); got != "ZMYND11" {
			t.Errorf("unexpected gene param: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"gene_info":{"gene_id":"ENSG00000015171","contig":"chr10","start":"180405","end":300577}}`))
	})

	before := testutil.ToFloat64(metrics.GeneLookupsTotal.WithLabelValues("api", "found"))

	pos, err := c.Locate(context.Background(), " ZMYND11 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Chr != "10" || pos.Start != 180405 || pos.End != 300577 || pos.GeneID != "ENSG00000015171" {
		t.Errorf("unexpected position %+v", pos)
	}
	if got := testutil.ToFloat64(metrics.GeneLookupsTotal.WithLabelValues("api", "found")) - before; got != 1 {
		t.Errorf("expected one found lookup, got %f", got)
	}
}

func TestClient_Locate_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"404", http.StatusNotFound, ``, domain.ErrGeneNotFound},
		{"empty gene_info", http.StatusOK, `{"gene_info":null}`, domain.ErrGeneNotFound},
		{"no contig", http.StatusOK, `{"gene_info":{"start":1,"end":2}}`, domain.ErrGeneNotFound},
		{"500", http.StatusInternalServerError, `oops`, domain.ErrGeneLookupUnavailable},
		{"429", http.StatusTooManyRequests, ``, domain.ErrGeneLookupUnavailable},
		{"bad json", http.StatusOK, `{"gene_info":`, domain.ErrGeneLookupUnavailable},
		{"bad coordinate", http.StatusOK, `{"gene_info":{"contig":"1","start":"x","end":2}}`, domain.ErrGeneLookupUnavailable},
		{"inverted interval", http.StatusOK, `{"gene_info":{"contig":"1","start":5,"end":2}}`, domain.ErrGeneLookupUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Locate(context.Background(), "UNKNOWN_GENE_XYZ")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestClient_Locate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(&Config{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Locate(context.Background(), "BRCA1"); !errors.Is(err, domain.ErrGeneLookupUnavailable) {
		t.Fatalf("expected ErrGeneLookupUnavailable, got %v", err)
	}
}

func TestClient_Locate_EmptyName(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	if _, err := c.Locate(context.Background(), "  "); !errors.Is(err, domain.ErrGeneNotFound) {
		t.Fatalf("expected ErrGeneNotFound, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no request, got %d", calls.Load())
	}
}

func TestClient_RateLimit_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"gene_info":{"contig":"1","start":1,"end":2}}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{BaseURL: srv.URL, RatePerSec: 0.001, Burst: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Locate(context.Background(), "A"); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Locate(ctx, "B"); !errors.Is(err, domain.ErrGeneLookupUnavailable) {
		t.Fatalf("expected ErrGeneLookupUnavailable while throttled, got %v", err)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url"} {
		if _, err := NewClient(&Config{BaseURL: u}); err == nil {
			t.Errorf("expected error for %q", u)
		}
	}
}
