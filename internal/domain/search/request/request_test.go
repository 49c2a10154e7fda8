package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/search/mode"
)

func chrSelection(t *testing.T) Selection {
	t.Helper()
	s, err := NewSelection(mode.Chromosome, Params{Chromosome: &Chromosome{Chr: "2", Start: 10, End: 100000}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestNewSelection_Valid(t *testing.T) {
	tests := []struct {
		name string
		mode mode.Mode
		p    Params
	}{
		{"chromosome", mode.Chromosome, Params{Chromosome: &Chromosome{Chr: " 2 ", Start: 1, End: 1}}},
		{"ids", mode.IDList, Params{IDs: []string{"2:10662G>C"}}},
		{"rsids", mode.RsIDList, Params{RsIDs: []string{"rs1", "rs2"}}},
		{"gene", mode.GeneProduct, Params{Gene: "ZMYND11"}},
		{"keyword", mode.Keyword, Params{Keyword: &Keyword{Text: "BRCA1"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSelection(tc.mode, tc.p, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Mode() != tc.mode {
				t.Errorf("Mode() = %q, want %q", s.Mode(), tc.mode)
			}
		})
	}
}

func TestNewSelection_Invalid(t *testing.T) {
	tests := []struct {
		name string
		mode mode.Mode
		p    Params
	}{
		{"unknown mode", mode.Mode("vector"), Params{}},
		{"chromosome missing", mode.Chromosome, Params{}},
		{"chromosome blank", mode.Chromosome, Params{Chromosome: &Chromosome{Chr: " "}}},
		{"start after end", mode.Chromosome, Params{Chromosome: &Chromosome{Chr: "2", Start: 10, End: 5}}},
		{"negative position", mode.Chromosome, Params{Chromosome: &Chromosome{Chr: "2", Start: -1, End: 5}}},
		{"ids blank", mode.IDList, Params{IDs: []string{" ", ""}}},
		{"rsids empty", mode.RsIDList, Params{}},
		{"gene blank", mode.GeneProduct, Params{Gene: "  "}},
		{"keyword missing", mode.Keyword, Params{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSelection(tc.mode, tc.p, nil)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestNewSelection_Normalizes(t *testing.T) {
	s, err := NewSelection(mode.IDList, Params{
		IDs:        []string{" a ", "b", "a", ""},
		RsIDs:      []string{"ignored"},
		Chromosome: &Chromosome{Chr: "ignored"},
	}, []string{"chr", " ", "chr", "pos"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := s.Params()
	if strings.Join(p.IDs, ",") != "a,b" {
		t.Errorf("IDs = %v", p.IDs)
	}
	if p.RsIDs != nil || p.Chromosome != nil {
		t.Error("parameters for other modes should be cleared")
	}
	if strings.Join(s.FilterFields(), ",") != "chr,pos" {
		t.Errorf("FilterFields() = %v", s.FilterFields())
	}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(chrSelection(t), nil, 0, 0, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Size() != DefaultPageSize {
		t.Errorf("Size() = %d, want %d", r.Size(), DefaultPageSize)
	}
	if r.From() != 0 {
		t.Errorf("From() = %d", r.From())
	}
	if strings.Join(r.Fields(), ",") != strings.Join(DefaultFields, ",") {
		t.Errorf("Fields() = %v", r.Fields())
	}
}

func TestNew_PageWindow(t *testing.T) {
	sel := chrSelection(t)
	lim := DefaultLimits()

	if _, err := New(sel, nil, 9950, 50, lim); err != nil {
		t.Fatalf("window edge should pass: %v", err)
	}
	_, err := New(sel, nil, 9951, 50, lim)
	if !errors.Is(err, domain.ErrPageWindowExceeded) {
		t.Fatalf("expected ErrPageWindowExceeded, got %v", err)
	}
	_, err = New(sel, nil, 0, 10001, lim)
	if !errors.Is(err, domain.ErrPageWindowExceeded) {
		t.Fatalf("expected ErrPageWindowExceeded, got %v", err)
	}
}

func TestNew_IDNotCountedAgainstFieldLimit(t *testing.T) {
	fields := []string{"id"}
	for i := range 20 {
		fields = append(fields, "f"+strings.Repeat("x", i))
	}
	if _, err := New(chrSelection(t), fields, 0, 10, DefaultLimits()); err != nil {
		t.Fatalf("id must not count against the field limit: %v", err)
	}
}

func TestCheckFieldLimit(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		wantErr bool
	}{
		{"under", []string{"chr", "pos"}, false},
		{"at limit with id", []string{"id", "chr", "pos", "ref"}, false},
		{"duplicates collapse", []string{"chr", "chr", "pos", "ref"}, false},
		{"over", []string{"chr", "pos", "ref", "alt"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckFieldLimit(tc.fields, 3)
			if tc.wantErr != errors.Is(err, domain.ErrTooManyFields) {
				t.Errorf("CheckFieldLimit(%v) = %v, wantErr %v", tc.fields, err, tc.wantErr)
			}
		})
	}
}

func TestNew_NegativeFrom(t *testing.T) {
	_, err := New(chrSelection(t), nil, -1, 10, DefaultLimits())
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestNew_TooManyFields(t *testing.T) {
	fields := make([]string, 0, 21)
	for i := range 21 {
		fields = append(fields, "f"+strings.Repeat("x", i))
	}
	_, err := New(chrSelection(t), fields, 0, 10, DefaultLimits())
	if !errors.Is(err, domain.ErrTooManyFields) {
		t.Fatalf("expected ErrTooManyFields, got %v", err)
	}

	// duplicates collapse before counting
	dup := append(fields[:20:20], fields[0])
	if _, err := New(chrSelection(t), dup, 0, 10, DefaultLimits()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
