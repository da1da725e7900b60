package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation  = "operation"
	KeyJob        = "job"
	KeyKind       = "kind"
	KeySenderHash = "sender_hash"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyBatch      = "batch"
)

// Status values for consistent logging.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithJob returns a logger with the job id and kind attributes set.
func WithJob(logger *slog.Logger, jobID, kind string) *slog.Logger {
	return logger.With(slog.String(KeyJob, jobID), slog.String(KeyKind, kind))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Job returns a slog attribute for the job id.
func Job(id string) slog.Attr {
	return slog.String(KeyJob, id)
}

// Kind returns a slog attribute for the job kind.
func Kind(kind string) slog.Attr {
	return slog.String(KeyKind, kind)
}

// Batch returns a slog attribute for a batch index.
func Batch(index int) slog.Attr {
	return slog.Int(KeyBatch, index)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted
// from output. This allows safely passing Err(maybeNilErr) without
// adding empty attributes.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging
// purposes. This allows correlation of log entries without exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(email)))
	return "sender:" + hex.EncodeToString(hash[:8])
}

// SenderHash returns a slog attribute with the anonymized sender email.
// Bulk operations log per-sender progress; the hash keeps entries
// correlatable without leaking addresses.
func SenderHash(email string) slog.Attr {
	return slog.String(KeySenderHash, AnonymizeEmail(email))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content,
// as even partial token prefixes can aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain extracts the domain part from an email address.
// Useful for lower-cardinality logging where the full email would create
// too many unique values.
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Domain returns a slog attribute for the email domain (lower
// cardinality than the full address).
func Domain(email string) slog.Attr {
	return slog.String("sender_domain", ExtractDomain(email))
}
