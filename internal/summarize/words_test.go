package summarize

import "testing"

func TestWordCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two", 2},
		{" one\ttwo\n\nthree ", 3},
		{"naïve café", 2},
	}
	for _, tt := range tests {
		if got := WordCount(tt.input); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"a b c d", 2, "a b"},
		{"a  b\nc", 10, "a b c"},
		{"", 5, ""},
		{"a b", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateWords(tt.input, tt.n); got != tt.want {
			t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}
