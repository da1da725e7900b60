package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "batch_modify")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithJob(t *testing.T) {
	logger := slog.Default()
	result := WithJob(logger, "7b9e", "delete")
	if result == nil {
		t.Error("WithJob returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("batch_modify")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "batch_modify" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "batch_modify")
	}
}

func TestKindAttr(t *testing.T) {
	attr := Kind("markRead")
	if attr.Key != KeyKind {
		t.Errorf("Kind key = %q, want %q", attr.Key, KeyKind)
	}
}

func TestBatchAttr(t *testing.T) {
	attr := Batch(3)
	if attr.Key != KeyBatch {
		t.Errorf("Batch key = %q, want %q", attr.Key, KeyBatch)
	}
	if attr.Value.Int64() != 3 {
		t.Errorf("Batch value = %d, want 3", attr.Value.Int64())
	}
}

func TestErrAttr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "boom")
	}
}

func TestErrAttrNil(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty group", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	hash := AnonymizeEmail("newsletter@example.com")
	if !strings.HasPrefix(hash, "sender:") {
		t.Errorf("AnonymizeEmail = %q, want sender: prefix", hash)
	}
	if strings.Contains(hash, "example.com") {
		t.Error("AnonymizeEmail leaked the address")
	}
	// Case-insensitive: the same sender must hash identically.
	if hash != AnonymizeEmail("Newsletter@Example.COM") {
		t.Error("AnonymizeEmail is case-sensitive")
	}
	if AnonymizeEmail("") != "" {
		t.Error("AnonymizeEmail of empty string should be empty")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("SanitizeToken(\"\") = %q", got)
	}
	got := SanitizeToken("ya29.secret")
	if strings.Contains(got, "secret") {
		t.Error("SanitizeToken leaked token content")
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"user@example.com", "example.com"},
		{"not-an-email", ""},
		{"", ""},
		{"a@b@c", ""},
	}
	for _, tt := range tests {
		if got := ExtractDomain(tt.email); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
