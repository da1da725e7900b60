package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxsweeper/internal/engine"
	"github.com/teemow/inboxsweeper/internal/events"
	"github.com/teemow/inboxsweeper/internal/gmail"
)

func newSweepCmd() *cobra.Command {
	var (
		cfg          runtimeConfig
		kind         string
		sender       string
		query        string
		label        string
		addLabels    []string
		removeLabels []string
		exclude      []string
		maxMessages  int64
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a single bulk operation against the mailbox",
		Long: `Run one bulk operation and wait for it to finish, printing progress.

Examples:
  inboxsweeper sweep --kind delete --sender news@example.com
  inboxsweeper sweep --kind mark-read --query "older_than:1y"
  inboxsweeper sweep --kind apply-label --sender news@example.com --label Newsletters
  inboxsweeper sweep --kind unsubscribe --sender news@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.loadEnv(); err != nil {
				return err
			}

			req, err := buildSweepRequest(kind, sender, query, label, addLabels, removeLabels, exclude, maxMessages)
			if err != nil {
				return err
			}

			return runOneShot(cfg, req, func(job engine.Job) error {
				if len(job.FailedBatches) > 0 {
					fmt.Printf("Completed with %d failed batches: %v\n", len(job.FailedBatches), job.FailedBatches)
				} else {
					fmt.Printf("Completed: %d messages processed\n", job.Progress.Current)
				}
				return nil
			})
		},
	}

	cfg.registerFlags(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "Operation: delete, delete-with-exceptions, mark-read, apply-label, modify-label, create-filter or unsubscribe")
	cmd.Flags().StringVar(&sender, "sender", "", "Sender email address scoping the operation")
	cmd.Flags().StringVar(&query, "query", "", "Gmail search query, used instead of or in addition to sender")
	cmd.Flags().StringVar(&label, "label", "", "Label name for apply-label")
	cmd.Flags().StringSliceVar(&addLabels, "add-labels", nil, "Label IDs to add for modify-label")
	cmd.Flags().StringSliceVar(&removeLabels, "remove-labels", nil, "Label IDs to remove for modify-label")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Message IDs to spare for delete-with-exceptions")
	cmd.Flags().Int64Var(&maxMessages, "max-messages", 0, "Maximum number of messages to touch (0 = no limit)")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

// buildSweepRequest maps the CLI flag vocabulary onto a job request.
func buildSweepRequest(kind, sender, query, label string, addLabels, removeLabels, exclude []string, maxMessages int64) (engine.Request, error) {
	req := engine.Request{
		Sender:      sender,
		Query:       query,
		MaxMessages: maxMessages,
	}

	switch kind {
	case "delete":
		req.Kind = engine.KindDelete
	case "delete-with-exceptions":
		req.Kind = engine.KindDeleteWithExceptions
		req.ExcludedIDs = exclude
	case "mark-read":
		req.Kind = engine.KindMarkRead
	case "apply-label":
		req.Kind = engine.KindApplyLabel
		req.LabelName = label
	case "modify-label":
		req.Kind = engine.KindModifyLabel
		req.AddLabelIDs = addLabels
		req.RemoveLabelIDs = removeLabels
	case "create-filter":
		req.Kind = engine.KindCreateFilter
		req.FilterCriteria = gmail.FilterCriteria{From: sender}
		req.FilterAction = gmail.FilterAction{Archive: true, MarkAsRead: true}
	case "unsubscribe":
		req.Kind = engine.KindUnsubscribe
	default:
		return engine.Request{}, fmt.Errorf("unknown kind %q (supported: delete, delete-with-exceptions, mark-read, apply-label, modify-label, create-filter, unsubscribe)", kind)
	}

	return req, req.Validate()
}

// runOneShot builds the engine, runs a single job through the queue and
// waits for its terminal state. onDone renders the kind-specific
// summary for a successful job.
func runOneShot(cfg runtimeConfig, req engine.Request, onDone func(engine.Job) error) error {
	setupLogging(cfg.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	queue := engine.NewQueue(rt.exec,
		engine.WithBus(rt.bus),
		engine.WithQueueActionLog(rt.store),
	)
	queue.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = queue.Stop(stopCtx)
	}()

	job, err := queue.Enqueue(req)
	if err != nil {
		return err
	}

	final, err := waitForJob(ctx, queue, rt.bus, job.ID)
	if err != nil {
		return err
	}

	switch final.Status {
	case engine.StatusSuccess:
		return onDone(final)
	case engine.StatusCancelled:
		return fmt.Errorf("job cancelled after %d/%d messages", final.Progress.Current, final.Progress.Total)
	default:
		return fmt.Errorf("job failed: %s", final.Error)
	}
}

// waitForJob blocks until the job reaches a terminal state, printing
// progress along the way. Bus events drive the display; a poll ticker
// covers dropped events.
func waitForJob(ctx context.Context, queue *engine.Queue, bus *events.Bus, id string) (engine.Job, error) {
	ch, unsubscribe := bus.Subscribe(events.TopicJobs)
	defer unsubscribe()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return engine.Job{}, ctx.Err()
		case ev := <-ch:
			job, ok := ev.Payload.(engine.Job)
			if !ok || job.ID != id {
				continue
			}
			printProgress(job)
			if job.Status.Terminal() {
				return job, nil
			}
		case <-ticker.C:
			job, err := queue.Job(id)
			if err != nil {
				return engine.Job{}, err
			}
			if job.Status.Terminal() {
				printProgress(job)
				return job, nil
			}
		}
	}
}

func printProgress(job engine.Job) {
	if job.Progress.Total == 0 {
		return
	}
	if job.ETA > 0 {
		fmt.Printf("%d/%d (eta %s)\n", job.Progress.Current, job.Progress.Total, job.ETA.Truncate(time.Second))
		return
	}
	fmt.Printf("%d/%d\n", job.Progress.Current, job.Progress.Total)
}
