package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/aggregation"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
	logpkg "github.com/USCbiostats/annoq-api-v2/internal/logger"
)

// Error codes returned in failure envelopes.
const (
	codeBadRequest     = "bad_request"
	codeUnauthorized   = "unauthorized"
	codeNoQuery        = "no_query"
	codeNotFound       = "not_found"
	codeWindowExceeded = "page_window_exceeded"
	codeUnavailable    = "gene_lookup_unavailable"
	codeBackend        = "backend_error"
	codeInternal       = "internal_error"
)

// envelope is the body of every search, count and export response.
type envelope struct {
	Success      bool                 `json:"success"`
	Code         string               `json:"code,omitempty"`
	Message      string               `json:"message,omitempty"`
	Details      any                  `json:"details,omitempty"`
	Total        *int64               `json:"total,omitempty"`
	NextFrom     *int                 `json:"next_from,omitempty"`
	Aggregations *aggregation.Results `json:"aggregations,omitempty"`
	Version      map[string]string    `json:"version,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Code: code, Message: message})
}

// clientSentinels are the errors whose text is safe to show a client.
var clientSentinels = []error{
	domain.ErrNoQuery,
	domain.ErrGeneNotFound,
	domain.ErrGeneLookupUnavailable,
	domain.ErrUnknownField,
	domain.ErrNoValidFields,
	domain.ErrTooManyFields,
	domain.ErrPageWindowExceeded,
	domain.ErrUnsupportedAggregation,
	domain.ErrInvalidRequest,
	domain.ErrBackend,
	domain.ErrSnapshot,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation errors keep the detail attached to the sentinel since it only names request inputs.
func safeDomainMessage(err error) string {
	for _, s := range clientSentinels {
		if !errors.Is(err, s) {
			continue
		}
		if isValidation(s) {
			return innermost(err, s).Error()
		}
		return s.Error()
	}
	return "internal error"
}

func isValidation(sentinel error) bool {
	switch sentinel {
	case domain.ErrInvalidRequest, domain.ErrUnknownField, domain.ErrNoValidFields,
		domain.ErrTooManyFields, domain.ErrPageWindowExceeded, domain.ErrUnsupportedAggregation:
		return true
	}
	return false
}

// innermost drops the "verb noun:" prefixes services add while wrapping and returns the
// deepest error in the chain that still carries sentinel plus detail.
func innermost(err, sentinel error) error {
	found := sentinel
	for e := err; e != nil; e = errors.Unwrap(e) {
		if e != sentinel && errors.Is(e, sentinel) {
			found = e
		}
	}
	return found
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// noQueryHandler answers an unbuildable query with an empty, failed result.
func noQueryHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrNoQuery) {
		return false
	}
	var zero int64
	writeJSON(w, http.StatusOK, envelope{
		Code:    codeNoQuery,
		Message: "no records selected: gene not found",
		Details: []domsnp.Record{},
		Total:   &zero,
	})
	return true
}

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		noQueryHandler,
		sentinelHandler(domain.ErrGeneLookupUnavailable, http.StatusServiceUnavailable, codeUnavailable),
		sentinelHandler(domain.ErrGeneNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrPageWindowExceeded, http.StatusBadRequest, codeWindowExceeded),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrUnknownField, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrNoValidFields, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrTooManyFields, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrUnsupportedAggregation, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrBackend, http.StatusBadGateway, codeBackend),
		sentinelHandler(domain.ErrSnapshot, http.StatusBadGateway, codeBackend),
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
