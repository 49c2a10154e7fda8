package request

import (
	"fmt"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// Pagination defaults.
const (
	DefaultPageSize   = 50
	DefaultPageWindow = 10_000
	DefaultMaxFields  = 20
)

// DefaultFields is used when the caller names no fields.
var DefaultFields = []string{"chr", "pos", "ref", "alt", "rs_dbSNP151"}

// Limits bounds what a single request may ask for.
type Limits struct {
	MaxFields       int
	MaxPageWindow   int
	DefaultPageSize int
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		MaxFields:       DefaultMaxFields,
		MaxPageWindow:   DefaultPageWindow,
		DefaultPageSize: DefaultPageSize,
	}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxFields <= 0 {
		l.MaxFields = d.MaxFields
	}
	if l.MaxPageWindow <= 0 {
		l.MaxPageWindow = d.MaxPageWindow
	}
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = d.DefaultPageSize
	}
	return l
}

// Request is a validated bounded search: a selection, requested fields and a page.
type Request struct {
	selection Selection
	fields    []string
	from      int
	size      int
}

// New validates pagination and field count.
// size <= 0 takes the default page size; from+size beyond the page window is rejected.
// fields are external names; empty means DefaultFields.
func New(sel Selection, fields []string, from, size int, lim Limits) (Request, error) {
	lim = lim.normalized()

	if from < 0 {
		return Request{}, fmt.Errorf("%w: pagination_from must be >= 0", domain.ErrInvalidRequest)
	}
	if size <= 0 {
		size = lim.DefaultPageSize
	}
	if from+size > lim.MaxPageWindow {
		return Request{}, fmt.Errorf("%w: from + size must be <= %d, got %d",
			domain.ErrPageWindowExceeded, lim.MaxPageWindow, from+size)
	}

	fields = compact(fields)
	if len(fields) == 0 {
		fields = append([]string(nil), DefaultFields...)
	}
	if err := CheckFieldLimit(fields, lim.MaxFields); err != nil {
		return Request{}, err
	}

	return Request{selection: sel, fields: fields, from: from, size: size}, nil
}

// CheckFieldLimit rejects more than limit distinct field names. The record id is always
// returned and does not count.
func CheckFieldLimit(fields []string, limit int) error {
	n := 0
	for _, f := range compact(fields) {
		if f != snp.IDField {
			n++
		}
	}
	if n > limit {
		return fmt.Errorf("%w: %d requested, max %d", domain.ErrTooManyFields, n, limit)
	}
	return nil
}

// Selection returns the record selection.
func (r Request) Selection() Selection { return r.selection }

// Fields returns the requested external names.
func (r Request) Fields() []string { return r.fields }

// From returns the page offset.
func (r Request) From() int { return r.from }

// Size returns the page size.
func (r Request) Size() int { return r.size }
