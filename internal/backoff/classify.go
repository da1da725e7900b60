package backoff

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
)

// Class describes how an error from an outbound call should be handled.
type Class int

const (
	// ClassFatal errors are not retried.
	ClassFatal Class = iota

	// ClassRateLimited errors are retried with backoff (HTTP 429, or
	// Gmail's 403 responses with a rate-limit reason).
	ClassRateLimited

	// ClassTransient errors are retried with backoff (5xx, network).
	ClassTransient

	// ClassAuthInvalid errors trigger a forced token refresh followed by
	// a single uncounted retry (HTTP 401).
	ClassAuthInvalid
)

// String returns a short label for logging.
func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	case ClassAuthInvalid:
		return "auth_invalid"
	default:
		return "fatal"
	}
}

// rateLimitReasons are the error reasons Gmail attaches to 403 responses
// that are actually quota throttling rather than permission problems.
var rateLimitReasons = []string{
	"rateLimitExceeded",
	"userRateLimitExceeded",
	"quotaExceeded",
}

// Classify maps an error from an outbound Gmail or token call onto a
// retry class. Context cancellation is always fatal so callers stop
// promptly.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return ClassAuthInvalid
		case apiErr.Code == 429:
			return ClassRateLimited
		case apiErr.Code == 403 && isRateLimitReason(apiErr):
			return ClassRateLimited
		case apiErr.Code >= 500:
			return ClassTransient
		default:
			return ClassFatal
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == 401:
			return ClassAuthInvalid
		case statusErr.Code == 429:
			return ClassRateLimited
		case statusErr.Code >= 500:
			return ClassTransient
		default:
			return ClassFatal
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassFatal
}

func isRateLimitReason(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		for _, reason := range rateLimitReasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	// Some quota errors only carry the reason in the message body.
	for _, reason := range rateLimitReasons {
		if strings.Contains(apiErr.Message, reason) {
			return true
		}
	}
	return false
}

// StatusError carries an HTTP status code for calls made outside the
// generated Google API client (the token endpoints, unsubscribe URLs).
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Msg)
}
