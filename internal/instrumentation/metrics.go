package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrKind      = "kind"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrTool      = "tool"
	attrBatch     = "batch"
	attrDomain    = "sender_domain"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Job metrics
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram
	queueDepth  metric.Int64UpDownCounter

	// Batch metrics
	batchesTotal metric.Int64Counter
	batchSize    metric.Int64Histogram

	// Token metrics
	tokenRefreshTotal metric.Int64Counter

	// Gmail API metrics
	gmailOperationsTotal   metric.Int64Counter
	gmailOperationDuration metric.Float64Histogram

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels
// (like sender domains) are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// Job metrics
	m.jobsTotal, err = meter.Int64Counter(
		"sweep_jobs_total",
		metric.WithDescription("Total number of sweep jobs by kind and terminal status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_jobs_total counter: %w", err)
	}

	m.jobDuration, err = meter.Float64Histogram(
		"sweep_job_duration_seconds",
		metric.WithDescription("Sweep job duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0, 900.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_job_duration_seconds histogram: %w", err)
	}

	m.queueDepth, err = meter.Int64UpDownCounter(
		"sweep_queue_depth",
		metric.WithDescription("Number of jobs waiting or running"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_queue_depth gauge: %w", err)
	}

	// Batch metrics
	m.batchesTotal, err = meter.Int64Counter(
		"sweep_batches_total",
		metric.WithDescription("Total number of dispatched batches by result"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_batches_total counter: %w", err)
	}

	m.batchSize, err = meter.Int64Histogram(
		"sweep_batch_size",
		metric.WithDescription("Number of message IDs per dispatched batch"),
		metric.WithUnit("{message}"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_batch_size histogram: %w", err)
	}

	// Token metrics
	m.tokenRefreshTotal, err = meter.Int64Counter(
		"token_refresh_total",
		metric.WithDescription("Total number of access token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_refresh_total counter: %w", err)
	}

	// Gmail API metrics
	m.gmailOperationsTotal, err = meter.Int64Counter(
		"gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}

	m.gmailOperationDuration, err = meter.Float64Histogram(
		"gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	// MCP tool metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordJob records a finished job with its kind, terminal status and
// duration. An optional sender domain is attached only when detailed
// labels are enabled.
func (m *Metrics) RecordJob(ctx context.Context, kind, status, senderDomain string, duration time.Duration) {
	if m == nil || m.jobsTotal == nil || m.jobDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && senderDomain != "" {
		attrs = append(attrs, attribute.String(attrDomain, senderDomain))
	}

	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBatch records one dispatched batch with its result and size.
// Result should be one of: "success", "failure".
func (m *Metrics) RecordBatch(ctx context.Context, result string, size int) {
	if m == nil || m.batchesTotal == nil || m.batchSize == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.batchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.batchSize.Record(ctx, int64(size), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records an access token refresh attempt.
// Result should be one of: "success", "failure".
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordGmailOperation records a Gmail API operation with its status
// code and duration.
func (m *Metrics) RecordGmailOperation(ctx context.Context, operation string, statusCode int, duration time.Duration) {
	if m == nil || m.gmailOperationsTotal == nil || m.gmailOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.gmailOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gmailOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name,
// status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementQueueDepth increments the queue depth gauge when a job is
// enqueued.
func (m *Metrics) IncrementQueueDepth(ctx context.Context) {
	if m == nil || m.queueDepth == nil {
		return // Instrumentation not initialized
	}
	m.queueDepth.Add(ctx, 1)
}

// DecrementQueueDepth decrements the queue depth gauge when a job
// reaches a terminal state.
func (m *Metrics) DecrementQueueDepth(ctx context.Context) {
	if m == nil || m.queueDepth == nil {
		return // Instrumentation not initialized
	}
	m.queueDepth.Add(ctx, -1)
}
