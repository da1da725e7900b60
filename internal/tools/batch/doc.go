// Package batch provides helpers for MCP tools that accept one or
// many identifiers in a single argument: parsing string-or-array
// parameters, running an operation per identifier, and formatting the
// aggregated results as JSON.
package batch
