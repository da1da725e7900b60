package jobtools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxsweeper/internal/actionlog"
	"github.com/teemow/inboxsweeper/internal/server"
	"github.com/teemow/inboxsweeper/internal/tools/batch"
)

// actionRecord is the JSON view of a logged sender action.
type actionRecord struct {
	ID          int64  `json:"id"`
	Sender      string `json:"sender"`
	Action      string `json:"action"`
	Status      string `json:"status"`
	JobID       string `json:"jobId,omitempty"`
	Detail      string `json:"detail,omitempty"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

func toActionRecords(rows []actionlog.SenderAction) []actionRecord {
	records := make([]actionRecord, 0, len(rows))
	for _, row := range rows {
		rec := actionRecord{
			ID:        row.ID,
			Sender:    row.Sender,
			Action:    row.Action,
			Status:    row.Status,
			JobID:     row.JobID,
			Detail:    row.Detail,
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
		}
		if !row.CompletedAt.IsZero() {
			rec.CompletedAt = row.CompletedAt.Format(time.RFC3339)
		}
		records = append(records, rec)
	}
	return records
}

func registerStatusTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	getJobTool := mcp.NewTool("sweeper_get_job",
		mcp.WithDescription("Get a sweep job by ID, including status, progress and ETA"),
		mcp.WithString("jobId",
			mcp.Required(),
			mcp.Description("The job ID returned by an enqueue tool"),
		),
	)
	addTool(s, sc, getJobTool, handleGetJob)

	listJobsTool := mcp.NewTool("sweeper_list_jobs",
		mcp.WithDescription("List all sweep jobs in enqueue order"),
	)
	addTool(s, sc, listJobsTool, handleListJobs)

	cancelJobTool := mcp.NewTool("sweeper_cancel_job",
		mcp.WithDescription("Cancel one or more sweep jobs. A running job stops between batches; already dispatched batches are not undone."),
		mcp.WithString("jobIds",
			mcp.Required(),
			mcp.Description("Job ID (string) or array of job IDs to cancel"),
		),
	)
	addTool(s, sc, cancelJobTool, handleCancelJobs)

	senderActionsTool := mcp.NewTool("sweeper_sender_actions",
		mcp.WithDescription("List recorded bulk actions for a sender, or all pending actions when no sender is given"),
		mcp.WithString("sender",
			mcp.Description("Sender email address (default: list pending actions across all senders)"),
		),
	)
	addTool(s, sc, senderActionsTool, handleSenderActions)

	topSendersTool := mcp.NewTool("sweeper_top_senders",
		mcp.WithDescription("List the highest-volume senders found by an analysis run"),
		mcp.WithString("runId",
			mcp.Required(),
			mcp.Description("The analysis job ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of senders to return (default: 20)"),
		),
	)
	addTool(s, sc, topSendersTool, handleTopSenders)

	mailboxStatsTool := mcp.NewTool("sweeper_mailbox_stats",
		mcp.WithDescription("Get mailbox-wide statistics (message and thread totals). Served from a 30-minute cache to spare the Gmail quota."),
	)
	addTool(s, sc, mailboxStatsTool, handleMailboxStats)
}

// mailboxStatsCacheKey is the stats cache row holding the profile
// snapshot.
const mailboxStatsCacheKey = "mailbox_profile"

// mailboxStats is the JSON view of the Gmail profile snapshot.
type mailboxStats struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
	FetchedAt     string `json:"fetchedAt"`
}

func handleMailboxStats(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	store := sc.ActionLog()
	if store != nil {
		if payload, ok, err := store.CachedStats(ctx, mailboxStatsCacheKey); err == nil && ok {
			return mcp.NewToolResultText(payload), nil
		}
	}

	mailbox := sc.Mailbox()
	if mailbox == nil {
		return mcp.NewToolResultError("mailbox is not available"), nil
	}

	profile, err := mailbox.Profile(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch mailbox profile: %v", err)), nil
	}

	stats := mailboxStats{
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
		ThreadsTotal:  profile.ThreadsTotal,
		FetchedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode mailbox stats: %v", err)), nil
	}

	if store != nil {
		// A cache write failure does not fail the read.
		_ = store.PutStats(ctx, mailboxStatsCacheKey, string(payload))
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func handleGetJob(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	jobID := stringArg(args, "jobId")
	if jobID == "" {
		return mcp.NewToolResultError("jobId is required"), nil
	}

	queue := sc.Queue()
	if queue == nil {
		return mcp.NewToolResultError("job queue is not available"), nil
	}

	job, err := queue.Job(jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get job %s: %v", jobID, err)), nil
	}

	return jobResult(job)
}

func handleListJobs(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	queue := sc.Queue()
	if queue == nil {
		return mcp.NewToolResultError("job queue is not available"), nil
	}

	jobs := queue.Jobs()
	payload, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode jobs: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

func handleCancelJobs(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	jobIDs, err := batch.ParseStringOrArray(args["jobIds"], "jobIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	queue := sc.Queue()
	if queue == nil {
		return mcp.NewToolResultError("job queue is not available"), nil
	}

	results := batch.ProcessBatch(jobIDs, func(jobID string) (string, error) {
		if err := queue.Cancel(jobID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Job %s cancelled", jobID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleSenderActions(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	store := sc.ActionLog()
	if store == nil {
		return mcp.NewToolResultError("action log is not available"), nil
	}

	sender := stringArg(args, "sender")

	actions, err := func() ([]actionRecord, error) {
		if sender != "" {
			rows, err := store.SenderActions(ctx, sender)
			return toActionRecords(rows), err
		}
		rows, err := store.PendingActions(ctx)
		return toActionRecords(rows), err
	}()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read action log: %v", err)), nil
	}

	payload, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode actions: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

func handleTopSenders(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	runID := stringArg(args, "runId")
	if runID == "" {
		return mcp.NewToolResultError("runId is required"), nil
	}

	limit := int(intArg(args, "limit"))
	if limit <= 0 {
		limit = 20
	}

	store := sc.ActionLog()
	if store == nil {
		return mcp.NewToolResultError("action log is not available"), nil
	}

	stats, err := store.TopSenders(ctx, runID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read sender stats: %v", err)), nil
	}

	payload, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode sender stats: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}
