package instrumentation

import (
	"context"
	"errors"
	"testing"
)

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	if ctx == nil {
		t.Fatal("expected context to be non-nil")
	}
	if span == nil {
		t.Fatal("expected span to be non-nil")
	}
}

func TestStartToolSpan(t *testing.T) {
	ctx, span := StartToolSpan(context.Background(), "sweeper_enqueue_delete")
	defer span.End()

	if ctx == nil || span == nil {
		t.Fatal("expected context and span to be non-nil")
	}
}

func TestStartJobSpan(t *testing.T) {
	ctx, span := StartJobSpan(context.Background(), "job-1", "delete")
	defer span.End()

	if ctx == nil || span == nil {
		t.Fatal("expected context and span to be non-nil")
	}
}

func TestStartGmailSpan(t *testing.T) {
	ctx, span := StartGmailSpan(context.Background(), OperationBatchModify)
	defer span.End()

	if ctx == nil || span == nil {
		t.Fatal("expected context and span to be non-nil")
	}
}

func TestSetSpanError(t *testing.T) {
	_, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	// Should not panic with or without an error.
	SetSpanError(span, errors.New("boom"))
	SetSpanError(span, nil)
}

func TestSetSpanSuccess(t *testing.T) {
	_, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	SetSpanSuccess(span)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("GetTraceID without a span = %q, want empty", id)
	}
}

func TestSpanContextString_NoSpan(t *testing.T) {
	if s := SpanContextString(context.Background()); s != "" {
		t.Errorf("SpanContextString without a span = %q, want empty", s)
	}
}
