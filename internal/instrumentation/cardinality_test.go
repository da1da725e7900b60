package instrumentation

import "testing"

func TestExtractSenderDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"news@example.com", "example.com"},
		{"user@gmail.com", "gmail.com"},
		{"invalid", "unknown"},
		{"", "unknown"},
		{"trailing@", "unknown"},
		{"a@b@c", "unknown"},
	}

	for _, tt := range tests {
		if got := ExtractSenderDomain(tt.email); got != tt.want {
			t.Errorf("ExtractSenderDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
