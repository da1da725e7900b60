package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxsweeper/internal/actionlog"
	"github.com/teemow/inboxsweeper/internal/events"
	"github.com/teemow/inboxsweeper/internal/logging"
)

// queueCapacity bounds how many jobs may wait behind the worker.
const queueCapacity = 256

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished is returned when cancelling a job that already
	// reached a terminal state.
	ErrJobFinished = errors.New("job already finished")

	// ErrQueueFull is returned when the pending backlog is exhausted.
	ErrQueueFull = errors.New("job queue is full")
)

// Queue schedules jobs strictly FIFO with exactly one job running at a
// time. It owns per-job cancellation and publishes progress and
// terminal events on the jobs topic.
type Queue struct {
	exec   *Executor
	bus    *events.Bus
	log    *actionlog.Store
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	cancels map[string]context.CancelFunc

	pending chan string
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithBus attaches the events bus for job notifications.
func WithBus(bus *events.Bus) QueueOption {
	return func(q *Queue) {
		q.bus = bus
	}
}

// WithQueueLogger sets the queue's logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithQueueActionLog attaches the store that tracks per-sender
// actions. Sender-scoped jobs queue a pending action on enqueue and
// settle it on completion.
func WithQueueActionLog(store *actionlog.Store) QueueOption {
	return func(q *Queue) {
		q.log = store
	}
}

// WithQueueClock overrides the time source, for tests.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates a stopped queue over the executor. Call Start to
// launch the worker.
func NewQueue(exec *Executor, opts ...QueueOption) *Queue {
	q := &Queue{
		exec:    exec,
		logger:  slog.Default(),
		now:     time.Now,
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		pending: make(chan string, queueCapacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the single worker goroutine.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.stop = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.worker(ctx)
	}()
}

// Stop cancels the running job, stops the worker and waits for it to
// exit, bounded by ctx. A job interrupted this way ends in the same
// cancelled terminal state as a user cancellation; its pending sender
// action survives for the next process to resume.
func (q *Queue) Stop(ctx context.Context) error {
	if q.stop != nil {
		q.stop()
	}
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue shutdown: %w", ctx.Err())
	}
}

// Enqueue validates the request and appends a new queued job. For
// sender-scoped kinds a pending action is recorded in the action log
// so the request survives a restart.
func (q *Queue) Enqueue(req Request) (Job, error) {
	if err := req.Validate(); err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:         uuid.NewString(),
		Kind:       req.Kind,
		Request:    req,
		Status:     StatusQueued,
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()
	select {
	case q.pending <- job.ID:
	default:
		q.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	snapshot := job.clone()
	q.mu.Unlock()

	if q.log != nil && req.Sender != "" && req.Kind != KindAnalysis {
		if _, err := q.log.QueueSenderAction(context.Background(), req.Sender, string(req.Kind)); err != nil {
			q.logger.Warn("failed to record sender action",
				logging.Job(job.ID),
				logging.SenderHash(req.Sender),
				logging.Err(err))
		}
	}

	q.logger.Info("job enqueued", logging.Job(job.ID), logging.Kind(string(job.Kind)))
	q.publish(snapshot)
	return snapshot, nil
}

// Cancel requests cancellation of a job. Queued jobs are cancelled
// immediately; running jobs are signalled through their context and
// finish after the current batch.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("cancel %s: %w", id, ErrJobNotFound)
	}

	switch {
	case job.Status == StatusQueued:
		job.Status = StatusCancelled
		job.FinishedAt = q.now()
		snapshot := job.clone()
		q.mu.Unlock()
		q.logger.Info("queued job cancelled", logging.Job(id))
		q.publish(snapshot)
		return nil
	case job.Status == StatusRunning:
		cancel := q.cancels[id]
		q.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		q.logger.Info("cancellation requested", logging.Job(id))
		return nil
	default:
		q.mu.Unlock()
		return fmt.Errorf("cancel %s: %w", id, ErrJobFinished)
	}
}

// Job returns a snapshot of the job with the given ID.
func (q *Queue) Job(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	return job.clone(), nil
}

// Jobs returns snapshots of all known jobs in enqueue order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.jobs[id].clone())
	}
	return out
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.pending:
			q.run(ctx, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusQueued {
		// Cancelled while waiting in the backlog.
		q.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	job.StartedAt = q.now()
	jobCtx, cancel := context.WithCancel(ctx)
	q.cancels[id] = cancel
	snapshot := job.clone()
	q.mu.Unlock()

	logger := logging.WithJob(q.logger, id, string(job.Kind))
	logger.Info("job started")
	q.publish(snapshot)

	est := NewEstimator()
	report := func(p Progress) {
		est.Observe(p.Current)
		q.mu.Lock()
		job.Progress = p
		if eta, ok := est.ETA(p.Total); ok {
			job.ETA = eta
		}
		snap := job.clone()
		q.mu.Unlock()
		q.publish(snap)
	}

	failed, err := q.exec.Execute(jobCtx, &snapshot, report)

	cancel()
	q.mu.Lock()
	delete(q.cancels, id)
	job.FailedBatches = failed
	job.FinishedAt = q.now()
	job.ETA = 0
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Both a user Cancel and a queue Stop surface here: the job
		// context is derived from the worker context, so shutdown
		// cancels the running job and it lands in the same terminal
		// cancelled state. Its sender action stays pending either way.
		job.Status = StatusCancelled
	case err != nil:
		job.Status = StatusError
		job.Error = err.Error()
	default:
		job.Status = StatusSuccess
	}
	final := job.clone()
	q.mu.Unlock()

	q.settleSenderAction(final)

	switch final.Status {
	case StatusSuccess:
		logger.Info("job finished",
			logging.Status(logging.StatusSuccess),
			slog.Int("failed_batches", len(final.FailedBatches)))
	case StatusCancelled:
		logger.Info("job cancelled", logging.Status(logging.StatusCancelled))
	default:
		logger.Error("job failed",
			logging.Status(logging.StatusError),
			logging.Err(err))
	}
	q.publish(final)
}

// settleSenderAction resolves the pending action trail for
// sender-scoped jobs. Cancelled jobs leave their actions pending so
// they can be re-run.
func (q *Queue) settleSenderAction(job Job) {
	if q.log == nil || job.Request.Sender == "" || job.Kind == KindAnalysis {
		return
	}
	ctx := context.Background()
	var err error
	switch job.Status {
	case StatusSuccess:
		_, err = q.log.CompletePendingActions(ctx, job.Request.Sender, string(job.Kind), job.ID)
	case StatusError:
		_, err = q.log.FailPendingActions(ctx, job.Request.Sender, string(job.Kind), job.ID, job.Error)
	default:
		return
	}
	if err != nil {
		q.logger.Warn("failed to settle sender action",
			logging.Job(job.ID),
			logging.SenderHash(job.Request.Sender),
			logging.Err(err))
	}
}

func (q *Queue) publish(job Job) {
	if q.bus != nil {
		q.bus.Publish(events.TopicJobs, job.ID, job)
	}
}
