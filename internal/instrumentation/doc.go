// Package instrumentation provides OpenTelemetry-based observability
// for the inboxsweeper application.
//
// The Provider wires meter and tracer providers from configuration
// (environment-driven, Prometheus by default for metrics, tracing off
// by default) and exposes a domain Metrics recorder covering:
//
//   - sweep jobs (count, duration, queue depth)
//   - dispatched batches (result, size)
//   - access token refreshes
//   - Gmail API operations
//   - MCP tool invocations
//
// Sender identifiers never reach metric labels verbatim; the
// cardinality helpers reduce them to domains, and even those are only
// recorded when detailed labels are explicitly enabled.
package instrumentation
