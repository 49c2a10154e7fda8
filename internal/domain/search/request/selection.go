package request

import (
	"fmt"
	"strings"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
)

// Chromosome holds an inclusive position range on one chromosome.
type Chromosome struct {
	Chr   string
	Start int64
	End   int64
}

// Keyword holds a free-text query and its field restriction.
// Fields are external names; empty means the searchable set. GeneFields restricts the
// match to the curated gene columns and wins over Fields.
type Keyword struct {
	Text       string
	Fields     []string
	GeneFields bool
}

// Params carries the mode-specific inputs. Only the member matching the mode is read.
type Params struct {
	Chromosome *Chromosome
	IDs        []string
	RsIDs      []string
	Gene       string
	Keyword    *Keyword
}

// Selection is a validated record selection: mode, its parameters and existence filters.
// Counts, pages and streams all start from one.
type Selection struct {
	searchMode   mode.Mode
	params       Params
	filterFields []string
}

// NewSelection validates mode parameters. Blank ids and filter fields are dropped.
func NewSelection(m mode.Mode, p Params, filterFields []string) (Selection, error) {
	if !m.IsValid() {
		return Selection{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrInvalidRequest, m)
	}

	var clean Params
	switch m {
	case mode.Chromosome:
		c := p.Chromosome
		if c == nil || strings.TrimSpace(c.Chr) == "" {
			return Selection{}, fmt.Errorf("%w: chromosome is required", domain.ErrInvalidRequest)
		}
		if c.Start < 0 || c.End < 0 {
			return Selection{}, fmt.Errorf("%w: positions must be non-negative", domain.ErrInvalidRequest)
		}
		if c.Start > c.End {
			return Selection{}, fmt.Errorf("%w: start %d is after end %d", domain.ErrInvalidRequest, c.Start, c.End)
		}
		clean.Chromosome = &Chromosome{Chr: strings.TrimSpace(c.Chr), Start: c.Start, End: c.End}
	case mode.IDList:
		clean.IDs = compact(p.IDs)
		if len(clean.IDs) == 0 {
			return Selection{}, fmt.Errorf("%w: at least one id is required", domain.ErrInvalidRequest)
		}
	case mode.RsIDList:
		clean.RsIDs = compact(p.RsIDs)
		if len(clean.RsIDs) == 0 {
			return Selection{}, fmt.Errorf("%w: at least one rsid is required", domain.ErrInvalidRequest)
		}
	case mode.GeneProduct:
		clean.Gene = strings.TrimSpace(p.Gene)
		if clean.Gene == "" {
			return Selection{}, fmt.Errorf("%w: gene product is required", domain.ErrInvalidRequest)
		}
	case mode.Keyword:
		k := p.Keyword
		if k == nil || strings.TrimSpace(k.Text) == "" {
			return Selection{}, fmt.Errorf("%w: keyword is required", domain.ErrInvalidRequest)
		}
		clean.Keyword = &Keyword{Text: strings.TrimSpace(k.Text), Fields: compact(k.Fields), GeneFields: k.GeneFields}
	}

	return Selection{searchMode: m, params: clean, filterFields: compact(filterFields)}, nil
}

// Mode returns the selection strategy.
func (s Selection) Mode() mode.Mode { return s.searchMode }

// Params returns the normalized mode parameters.
func (s Selection) Params() Params { return s.params }

// FilterFields returns the external names that must be present on every match.
func (s Selection) FilterFields() []string { return s.filterFields }

// compact trims entries, drops blanks and duplicates, and keeps order.
func compact(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
