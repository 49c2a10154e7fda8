package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

// --- Range tests ---

func TestNewRangeFilter_Valid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
	}{
		{"gt only", floatPtr(1), nil, nil, nil},
		{"gte only", nil, floatPtr(0), nil, nil},
		{"lt only", nil, nil, floatPtr(10), nil},
		{"lte only", nil, nil, nil, floatPtr(100)},
		{"gt+lt", floatPtr(0), nil, floatPtr(10), nil},
		{"gte+lte", nil, floatPtr(0), nil, floatPtr(10)},
		{"gt+lte", floatPtr(0), nil, nil, floatPtr(10)},
		{"gte+lt", nil, floatPtr(0), floatPtr(10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (r.GT() == nil) != (tt.gt == nil) {
				t.Error("GT() mismatch")
			}
			if (r.GTE() == nil) != (tt.gte == nil) {
				t.Error("GTE() mismatch")
			}
			if (r.LT() == nil) != (tt.lt == nil) {
				t.Error("LT() mismatch")
			}
			if (r.LTE() == nil) != (tt.lte == nil) {
				t.Error("LTE() mismatch")
			}
		})
	}
}

func TestNewRangeFilter_NoBoundary(t *testing.T) {
	_, err := NewRangeFilter(nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for no boundary")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error = %q", err)
	}
}

func TestNewRangeFilter_BothGtAndGte(t *testing.T) {
	_, err := NewRangeFilter(floatPtr(1), floatPtr(1), nil, nil)
	if err == nil {
		t.Fatal("expected error for both gt and gte")
	}
	if !strings.Contains(err.Error(), "gt and gte") {
		t.Errorf("error = %q", err)
	}
}

func TestNewRangeFilter_BothLtAndLte(t *testing.T) {
	_, err := NewRangeFilter(nil, nil, floatPtr(1), floatPtr(1))
	if err == nil {
		t.Fatal("expected error for both lt and lte")
	}
	if !strings.Contains(err.Error(), "lt and lte") {
		t.Errorf("error = %q", err)
	}
}

// --- Clause tests ---

func TestNewTerm(t *testing.T) {
	c, err := NewTerm("chr", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind() != KindTerm || c.Field() != "chr" || c.Value() != "2" {
		t.Errorf("unexpected clause %+v", c)
	}
	if c.Range() != nil {
		t.Error("Range() should be nil for term")
	}
}

func TestNewTerm_Invalid(t *testing.T) {
	if _, err := NewTerm("", "2"); err == nil || !strings.Contains(err.Error(), "field is required") {
		t.Errorf("empty field: err = %v", err)
	}
	if _, err := NewTerm("chr", ""); err == nil || !strings.Contains(err.Error(), "value is required") {
		t.Errorf("empty value: err = %v", err)
	}
}

func TestNewTerms(t *testing.T) {
	c, err := NewTerms("rs_dbSNP151", []string{"rs1", "rs2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind() != KindTerms || len(c.Values()) != 2 {
		t.Errorf("unexpected clause %+v", c)
	}
	if _, err := NewTerms("rs_dbSNP151", nil); err == nil {
		t.Error("expected error for empty values")
	}
}

func TestNewRange_Valid(t *testing.T) {
	r, _ := NewRangeFilter(nil, floatPtr(10), nil, floatPtr(100000))
	c, err := NewRange("pos", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind() != KindRange || c.Field() != "pos" {
		t.Errorf("unexpected clause %+v", c)
	}
	if c.Range() == nil || *c.Range().GTE() != 10 || *c.Range().LTE() != 100000 {
		t.Fatal("bounds not preserved")
	}
}

func TestNewRange_EmptyField(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(0), nil, nil, nil)
	if _, err := NewRange("", r); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewExists(t *testing.T) {
	c, err := NewExists("VEP_ensembl_Gene_ID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind() != KindExists || c.Field() != "VEP_ensembl_Gene_ID" {
		t.Errorf("unexpected clause %+v", c)
	}
	if _, err := NewExists(""); err == nil {
		t.Error("expected error for empty field")
	}
}

func TestNewIDs(t *testing.T) {
	c, err := NewIDs([]string{"2:10662G>C"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind() != KindIDs || c.Values()[0] != "2:10662G>C" {
		t.Errorf("unexpected clause %+v", c)
	}
	if _, err := NewIDs(nil); err == nil {
		t.Error("expected error for empty ids")
	}
}

func TestNewMultiMatch(t *testing.T) {
	c, err := NewMultiMatch("TP53", []string{"VEP_ensembl_Gene_ID"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind() != KindMultiMatch || c.Text() != "TP53" || len(c.Fields()) != 1 {
		t.Errorf("unexpected clause %+v", c)
	}
	if _, err := NewMultiMatch("", []string{"a"}); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := NewMultiMatch("x", nil); err == nil {
		t.Error("expected error for empty fields")
	}
}

func TestInclusive(t *testing.T) {
	r, err := Inclusive(10, 100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		v    float64
		want bool
	}{
		{5, false},
		{10, true},
		{10662, true},
		{100000, true},
		{100001, false},
	}
	for _, tc := range tests {
		if got := r.Contains(tc.v); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
	if _, err := Inclusive(5, 1); err == nil {
		t.Error("expected error for inverted bounds")
	}
}

func TestRange_ContainsExclusive(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(0), nil, floatPtr(10), nil)
	if r.Contains(0) || r.Contains(10) || !r.Contains(5) {
		t.Error("exclusive bounds not honored")
	}
}

// --- Expression tests ---

func TestNewExpression_Valid(t *testing.T) {
	m, _ := NewTerm("chr", "2")
	expr, err := NewExpression([]Clause{m}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expr.Must()) != 1 {
		t.Errorf("Must() len = %d", len(expr.Must()))
	}
	if len(expr.Filter()) != 0 || len(expr.Should()) != 0 {
		t.Error("expected empty filter and should groups")
	}
	if expr.IsEmpty() {
		t.Error("IsEmpty() = true for non-empty expression")
	}
}

func TestNewExpression_Empty(t *testing.T) {
	expr, err := NewExpression(nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expr.IsEmpty() {
		t.Error("IsEmpty() = false for empty expression")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	clauses := make([]Clause, MaxClausesPerGroup+1)
	for i := range clauses {
		clauses[i] = Clause{kind: KindExists, field: "f"}
	}

	tests := []struct {
		name                 string
		must, filter, should []Clause
		msg                  string
	}{
		{"must", clauses, nil, nil, "too many must"},
		{"filter", nil, clauses, nil, "too many filter"},
		{"should", nil, nil, clauses, "too many should"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExpression(tt.must, tt.filter, tt.should)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %q", err)
			}
		})
	}
}

func TestNewExpression_AtMaxClauses(t *testing.T) {
	clauses := make([]Clause, MaxClausesPerGroup)
	for i := range clauses {
		clauses[i] = Clause{kind: KindExists, field: "f"}
	}
	if _, err := NewExpression(clauses, clauses, clauses); err != nil {
		t.Fatalf("unexpected error for exactly max clauses: %v", err)
	}
}

func TestWithFilter_DoesNotAlias(t *testing.T) {
	term, _ := NewTerm("chr", "2")
	exists, _ := NewExists("pos")
	base, _ := NewExpression(nil, []Clause{term}, nil)

	extended, err := base.WithFilter(exists)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(extended.Filter()) != 2 {
		t.Errorf("extended Filter() len = %d, want 2", len(extended.Filter()))
	}
	if len(base.Filter()) != 1 {
		t.Errorf("base Filter() len = %d, want 1", len(base.Filter()))
	}
}
