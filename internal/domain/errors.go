package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField signals an external attribute name with no storage mapping.
	ErrUnknownField = errors.New("unknown field")
	// ErrNoValidFields signals that every requested field was unknown.
	ErrNoValidFields = errors.New("no valid fields requested")
	// ErrTooManyFields signals a field list above the configured maximum.
	ErrTooManyFields = errors.New("too many fields requested")
	// ErrInvalidRequest signals malformed or missing search parameters.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPageWindowExceeded signals from+size beyond the page window.
	ErrPageWindowExceeded = errors.New("page window exceeded")
	// ErrUnsupportedAggregation signals an aggregation kind that the field type cannot serve.
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")

	// ErrNoQuery signals that no query could be constructed for the request.
	// Callers turn it into an empty, failed result.
	ErrNoQuery = errors.New("no query")
	// ErrGeneNotFound signals that no locator knows the gene.
	ErrGeneNotFound = errors.New("gene not found")
	// ErrGeneLookupUnavailable signals that a gene locator could not be reached.
	ErrGeneLookupUnavailable = errors.New("gene lookup unavailable")

	// ErrBackend signals a search engine failure after transport retries.
	ErrBackend = errors.New("search backend error")
	// ErrSnapshot signals a snapshot open or release failure.
	ErrSnapshot = errors.New("snapshot error")

	// ErrDuplicateAttribute signals two storage names sanitizing to the same external name.
	ErrDuplicateAttribute = errors.New("duplicate attribute name")
	// ErrInvalidAttributeTree signals an unreadable attribute definition document.
	ErrInvalidAttributeTree = errors.New("invalid attribute tree")
)

// PartialDeliveryError reports a stream that failed after some records were already handed out.
// Streams are append-only, so the delivered prefix cannot be taken back.
type PartialDeliveryError struct {
	Delivered int
	Err       error
}

func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("stream failed after %d records: %v", e.Delivered, e.Err)
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }
