package naturalsort

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"1 < 2", "1", "2", -1},
		{"2 > 1", "2", "1", 1},
		{"1 == 1", "1", "1", 0},
		{"1 < 10", "1", "10", -1},
		{"10 > 2", "10", "2", 1},
		{"10 < 100", "10", "100", -1},
		{"col_1 < col_10", "col_1", "col_10", -1},
		{"col_2 < col_10", "col_2", "col_10", -1},
		{"posts_1 < users_1", "posts_1", "users_1", -1},
		{"abc < abcd", "abc", "abcd", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLess(t *testing.T) {
	if !Less("table_2", "table_10") {
		t.Error("expected table_2 < table_10")
	}
	if Less("table_10", "table_2") {
		t.Error("expected table_10 not less than table_2")
	}
}
