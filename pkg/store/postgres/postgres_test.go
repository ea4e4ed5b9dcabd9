package postgres

import "testing"

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Spartak", "Spartak"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	if got := normalizeLimit(100); got != 100 {
		t.Errorf("normalizeLimit(100) = %d", got)
	}
	if got := normalizeLimit(0); got <= 100000 {
		t.Errorf("normalizeLimit(0) = %d, want unbounded", got)
	}
}

func TestNew_NilPool(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil pool")
	}
}
