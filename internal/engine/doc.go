// Package engine runs bulk mailbox operations as queued jobs.
//
// A Queue accepts job requests, persists a per-sender action trail via
// the actionlog store, and executes jobs one at a time in FIFO order on
// a single worker goroutine. The Executor carries out each job kind:
// it resolves message IDs, chunks them under the Gmail batchModify
// ceiling, dispatches batches with cancellation observed between
// chunks, and aggregates partial failures. A failed batch never aborts
// the job; the job errors only when every batch failed.
//
// Progress and terminal status changes are published on the events bus
// (jobs topic) so clients can follow long-running sweeps without
// polling. The Estimator turns a sliding window of progress
// observations into an ETA attached to progress events.
package engine
