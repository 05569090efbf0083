package privacy

import "testing"

func TestNew_Empty(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Fatal("expected nil redactor for no patterns")
	}
	if got := r.Apply("keep me"); got != "keep me" {
		t.Errorf("nil Apply = %q", got)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New([]string{"valid", "[invalid"}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		input    string
		want     string
	}{
		{"email", []string{`[\w.+-]+@[\w-]+\.[\w.]+`}, "contact ops@example.com now", "contact [REDACTED] now"},
		{"api key", []string{`sk-[A-Za-z0-9]{8,}`}, "token sk-abcdef123456 leaked", "token [REDACTED] leaked"},
		{"multiple patterns", []string{`\d{3}-\d{4}`, `(?i)secret`}, "call 555-1234, SECRET plan", "call [REDACTED], [REDACTED] plan"},
		{"no match", []string{`nomatch`}, "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.patterns)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := r.Apply(tt.input); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
