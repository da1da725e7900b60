// Package server provides the shared server context and the HTTP
// sidecars of the inboxsweeper MCP server.
//
// ServerContext bundles the long-lived dependencies handed to MCP
// tools (job queue, token manager, action log, events bus) and owns
// the shutdown signal.
//
// HealthChecker exposes Kubernetes-style liveness and readiness
// probes. Readiness reflects whether sweeps can actually run: the
// server must not be shutting down and the refresh token must not be
// known to be absent.
//
// MetricsServer serves Prometheus metrics on a dedicated port,
// isolating operational metrics from application traffic.
package server
