// Package jobtools registers the MCP tools that drive the sweep
// engine: enqueueing bulk jobs (delete, mark read, label, filter,
// unsubscribe, analysis), inspecting and cancelling jobs, and reading
// the per-sender action history.
//
// Tools operate on the shared server context and return job records as
// JSON so assistants can track progress via sweeper_get_job.
package jobtools
