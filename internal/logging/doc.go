// Package logging provides structured logging utilities for the
// inboxsweeper application.
//
// This package centralizes logging patterns to ensure consistent,
// structured logging throughout the codebase using the standard
// library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithJob(slog.Default(), job.ID, string(job.Kind))
//	logger.Info("batch dispatched", logging.Batch(i))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("sender queued", logging.SenderHash(email))
//
// # Security Considerations
//
// Bulk operations touch thousands of sender addresses. Addresses are
// hashed before logging so entries stay correlatable without leaking
// PII, and access tokens are never logged directly.
package logging
