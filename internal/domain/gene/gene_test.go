package gene

import "testing"

func TestNewPosition(t *testing.T) {
	p, err := NewPosition("chr11", 180000, 300000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Chr != "11" {
		t.Errorf("Chr = %q, want prefix stripped", p.Chr)
	}

	invalid := []struct {
		chr        string
		start, end int64
	}{
		{"", 1, 2},
		{"chr", 1, 2},
		{"2", 10, 5},
		{"2", -1, 5},
	}
	for _, tc := range invalid {
		if _, err := NewPosition(tc.chr, tc.start, tc.end); err == nil {
			t.Errorf("NewPosition(%q, %d, %d) expected error", tc.chr, tc.start, tc.end)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  zmynd11 "); got != "ZMYND11" {
		t.Errorf("Normalize() = %q", got)
	}
}
