// Package common provides shared wrappers for MCP tool handlers,
// notably the instrumentation wrapper that times invocations and
// records them as spans and metrics.
package common
