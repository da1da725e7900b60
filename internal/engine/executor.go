package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxsweeper/internal/actionlog"
	"github.com/teemow/inboxsweeper/internal/gmail"
	"github.com/teemow/inboxsweeper/internal/logging"
)

// Mailbox is the slice of the Gmail client the executor depends on.
// *gmail.Client satisfies it.
type Mailbox interface {
	Profile(ctx context.Context) (*gmailapi.Profile, error)
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	MessageMetadata(ctx context.Context, id string, headers ...string) (*gmailapi.Message, error)
	BatchModify(ctx context.Context, ids, addLabelIDs, removeLabelIDs []string) error
	EnsureLabel(ctx context.Context, name string) (string, error)
	CreateFilter(ctx context.Context, criteria gmail.FilterCriteria, action gmail.FilterAction) (*gmail.FilterInfo, error)
	GetUnsubscribeInfo(ctx context.Context, messageID string) (*gmail.UnsubscribeInfo, error)
	UnsubscribeViaHTTP(ctx context.Context, url string) error
}

// heartbeatEvery is how many analyzed messages pass between heartbeat
// writes and progress reports during analysis.
const heartbeatEvery = 100

// Executor carries out a single job against the mailbox. It owns the
// chunking, cancellation and partial-failure semantics; the queue owns
// job lifecycle and status.
type Executor struct {
	mailbox   Mailbox
	log       *actionlog.Store
	logger    *slog.Logger
	chunkSize int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithActionLog attaches the store used for analysis-run heartbeats
// and results. Without it, analysis jobs still run but persist
// nothing.
func WithActionLog(store *actionlog.Store) ExecutorOption {
	return func(e *Executor) {
		e.log = store
	}
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithChunkSize overrides the batch ceiling, for tests.
func WithChunkSize(n int) ExecutorOption {
	return func(e *Executor) {
		e.chunkSize = n
	}
}

// NewExecutor creates an executor over the given mailbox.
func NewExecutor(mailbox Mailbox, opts ...ExecutorOption) *Executor {
	e := &Executor{
		mailbox:   mailbox,
		logger:    slog.Default(),
		chunkSize: gmail.MaxBatchModifyIDs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the job to completion, calling report after each chunk
// with cumulative progress. It returns the indices of failed batches;
// the error is non-nil only when the job as a whole failed (every
// batch failed, a precondition failed, or the context was cancelled).
func (e *Executor) Execute(ctx context.Context, job *Job, report func(Progress)) ([]int, error) {
	logger := logging.WithJob(e.logger, job.ID, string(job.Kind))

	switch job.Kind {
	case KindAnalysis:
		return nil, e.runAnalysis(ctx, job, report)
	case KindDelete:
		return e.runLabelSweep(ctx, job, report, []string{"TRASH"}, []string{"INBOX"})
	case KindDeleteWithExceptions:
		return e.runLabelSweep(ctx, job, report, []string{"TRASH"}, []string{"INBOX"})
	case KindMarkRead:
		return e.runLabelSweep(ctx, job, report, nil, []string{"UNREAD"})
	case KindApplyLabel:
		labelID, err := e.mailbox.EnsureLabel(ctx, job.Request.LabelName)
		if err != nil {
			return nil, err
		}
		return e.runLabelSweep(ctx, job, report, []string{labelID}, nil)
	case KindModifyLabel:
		return e.runLabelSweep(ctx, job, report, job.Request.AddLabelIDs, job.Request.RemoveLabelIDs)
	case KindCreateFilter:
		return nil, e.runCreateFilter(ctx, job, report)
	case KindUnsubscribe:
		return nil, e.runUnsubscribe(ctx, job, report)
	default:
		logger.Error("unknown job kind")
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, job.Kind)
	}
}

// resolveIDs lists the job's target message IDs and applies the
// exclusion list, if any.
func (e *Executor) resolveIDs(ctx context.Context, job *Job) ([]string, error) {
	ids, err := e.mailbox.ListMessageIDs(ctx, job.Request.searchQuery(), job.Request.MaxMessages)
	if err != nil {
		return nil, err
	}
	if len(job.Request.ExcludedIDs) == 0 {
		return ids, nil
	}

	excluded := make(map[string]struct{}, len(job.Request.ExcludedIDs))
	for _, id := range job.Request.ExcludedIDs {
		excluded[id] = struct{}{}
	}
	kept := ids[:0]
	for _, id := range ids {
		if _, skip := excluded[id]; !skip {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

// runLabelSweep resolves the job's messages and applies the label
// change batch by batch.
func (e *Executor) runLabelSweep(ctx context.Context, job *Job, report func(Progress), add, remove []string) ([]int, error) {
	ids, err := e.resolveIDs(ctx, job)
	if err != nil {
		return nil, err
	}
	return e.runBatches(ctx, job, ids, add, remove, report)
}

// runBatches dispatches label modifications in chunks. Cancellation is
// observed before each chunk; an in-flight call completes. A failed
// chunk is recorded and skipped, and the sweep continues; the error
// return is reserved for total failure and cancellation.
func (e *Executor) runBatches(ctx context.Context, job *Job, ids []string, add, remove []string, report func(Progress)) ([]int, error) {
	logger := logging.WithJob(e.logger, job.ID, string(job.Kind))
	total := len(ids)
	if total == 0 {
		report(Progress{Current: 0, Total: 0})
		return nil, nil
	}

	var failed []int
	batches := 0
	for start := 0; start < total; start += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		end := min(start+e.chunkSize, total)
		index := batches
		batches++

		if err := e.mailbox.BatchModify(ctx, ids[start:end], add, remove); err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			failed = append(failed, index)
			logger.Warn("batch failed, continuing sweep",
				logging.Batch(index),
				logging.Err(err))
		}
		report(Progress{Current: end, Total: total})
	}

	if len(failed) == batches {
		return failed, fmt.Errorf("all %d batches failed", batches)
	}
	return failed, nil
}

func (e *Executor) runCreateFilter(ctx context.Context, job *Job, report func(Progress)) error {
	_, err := e.mailbox.CreateFilter(ctx, job.Request.FilterCriteria, job.Request.FilterAction)
	if err != nil {
		return err
	}
	report(Progress{Current: 1, Total: 1})
	return nil
}

// runUnsubscribe follows the List-Unsubscribe header of the selected
// message. HTTP methods are executed directly; a mailto-only header
// falls back to a filter that archives the sender's future mail, since
// the engine never sends messages.
func (e *Executor) runUnsubscribe(ctx context.Context, job *Job, report func(Progress)) error {
	messageID := job.Request.MessageID
	if messageID == "" {
		ids, err := e.mailbox.ListMessageIDs(ctx, job.Request.searchQuery(), 1)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no messages found for sender %s", logging.AnonymizeEmail(job.Request.Sender))
		}
		messageID = ids[0]
	}

	info, err := e.mailbox.GetUnsubscribeInfo(ctx, messageID)
	if err != nil {
		return err
	}
	if !info.HasUnsubscribe {
		return fmt.Errorf("message %s carries no List-Unsubscribe header", messageID)
	}

	var mailtoOnly bool
	for _, m := range info.Methods {
		if m.Type == "http" {
			if err := e.mailbox.UnsubscribeViaHTTP(ctx, m.URL); err != nil {
				return err
			}
			report(Progress{Current: 1, Total: 1})
			return nil
		}
		if m.Type == "mailto" {
			mailtoOnly = true
		}
	}

	if mailtoOnly {
		sender := job.Request.Sender
		if sender == "" {
			sender = senderAddress(info.Sender)
		}
		_, err := e.mailbox.CreateFilter(ctx,
			gmail.FilterCriteria{From: sender},
			gmail.FilterAction{Archive: true, MarkAsRead: true},
		)
		if err != nil {
			return fmt.Errorf("mailto-only unsubscribe, filter fallback failed: %w", err)
		}
		report(Progress{Current: 1, Total: 1})
		return nil
	}

	return fmt.Errorf("no usable unsubscribe method on message %s", messageID)
}

// runAnalysis scans the mailbox and aggregates per-sender message
// counts. It writes a heartbeat into the action log on every progress
// tick so an interrupted run is detectable after a crash.
func (e *Executor) runAnalysis(ctx context.Context, job *Job, report func(Progress)) error {
	query := job.Request.searchQuery()
	if query == "" {
		query = "in:inbox"
	}

	if e.log != nil {
		if err := e.log.StartAnalysisRun(ctx, job.ID); err != nil {
			return err
		}
	}

	ids, err := e.mailbox.ListMessageIDs(ctx, query, job.Request.MaxMessages)
	if err != nil {
		e.failRun(ctx, job.ID, err)
		return err
	}

	total := len(ids)
	stats := make(map[string]*actionlog.SenderStat)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			e.failRun(ctx, job.ID, err)
			return err
		}

		msg, err := e.mailbox.MessageMetadata(ctx, id, "From")
		if err != nil {
			e.failRun(ctx, job.ID, err)
			return err
		}

		sender := senderAddress(gmail.HeaderValue(msg, "From"))
		if sender != "" {
			st, ok := stats[sender]
			if !ok {
				st = &actionlog.SenderStat{Sender: sender}
				stats[sender] = st
			}
			st.MessageCount++
			if hasLabel(msg, "UNREAD") {
				st.UnreadCount++
			}
		}

		scanned := i + 1
		if scanned%heartbeatEvery == 0 || scanned == total {
			if e.log != nil {
				if err := e.log.Heartbeat(ctx, job.ID, len(stats)); err != nil {
					e.logger.Warn("analysis heartbeat failed", logging.Job(job.ID), logging.Err(err))
				}
			}
			report(Progress{Current: scanned, Total: total})
		}
	}

	if e.log != nil {
		results := make([]actionlog.SenderStat, 0, len(stats))
		for _, st := range stats {
			results = append(results, *st)
		}
		if err := e.log.SaveSenderStats(ctx, job.ID, results); err != nil {
			e.failRun(ctx, job.ID, err)
			return err
		}
		if err := e.log.CompleteAnalysisRun(ctx, job.ID, len(stats)); err != nil {
			return err
		}
	}
	if total == 0 {
		report(Progress{Current: 0, Total: 0})
	}
	return nil
}

// failRun records a run failure without letting a cancelled job
// context block the bookkeeping write.
func (e *Executor) failRun(ctx context.Context, runID string, cause error) {
	if e.log == nil {
		return
	}
	if err := e.log.FailAnalysisRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		e.logger.Warn("failed to record analysis failure", logging.Job(runID), logging.Err(err))
	}
}

// senderAddress extracts the bare address from a From header value
// like `Name <addr@example.com>`.
func senderAddress(from string) string {
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}

func hasLabel(msg *gmailapi.Message, label string) bool {
	for _, l := range msg.LabelIds {
		if l == label {
			return true
		}
	}
	return false
}
