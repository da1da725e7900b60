package jobtools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxsweeper/internal/engine"
	"github.com/teemow/inboxsweeper/internal/gmail"
	"github.com/teemow/inboxsweeper/internal/server"
	"github.com/teemow/inboxsweeper/internal/tools/batch"
)

func registerEnqueueTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	analysisTool := mcp.NewTool("sweeper_enqueue_analysis",
		mcp.WithDescription("Analyze the mailbox and rank senders by message volume. Results are persisted and can be read with sweeper_top_senders."),
		mcp.WithString("query",
			mcp.Description("Gmail search query scoping the analysis (default: entire mailbox)"),
		),
		mcp.WithNumber("maxMessages",
			mcp.Description("Maximum number of messages to scan (default: no limit)"),
		),
	)
	addTool(s, sc, analysisTool, handleEnqueueAnalysis)

	markReadTool := mcp.NewTool("sweeper_enqueue_mark_read",
		mcp.WithDescription("Mark all messages from a sender (or matching a query) as read"),
		mcp.WithString("sender",
			mcp.Description("Sender email address scoping the job"),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query, used instead of or in addition to sender"),
		),
		mcp.WithNumber("maxMessages",
			mcp.Description("Maximum number of messages to touch (default: no limit)"),
		),
	)
	addTool(s, sc, markReadTool, handleEnqueueMarkRead)

	applyLabelTool := mcp.NewTool("sweeper_enqueue_apply_label",
		mcp.WithDescription("Apply a label to all messages from a sender (or matching a query). The label is created if it does not exist."),
		mcp.WithString("sender",
			mcp.Description("Sender email address scoping the job"),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query, used instead of or in addition to sender"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Name of the label to apply"),
		),
		mcp.WithNumber("maxMessages",
			mcp.Description("Maximum number of messages to touch (default: no limit)"),
		),
	)
	addTool(s, sc, applyLabelTool, handleEnqueueApplyLabel)

	modifyLabelTool := mcp.NewTool("sweeper_enqueue_modify_label",
		mcp.WithDescription("Add and/or remove label IDs on all messages from a sender (or matching a query)"),
		mcp.WithString("sender",
			mcp.Description("Sender email address scoping the job"),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query, used instead of or in addition to sender"),
		),
		mcp.WithString("addLabelIds",
			mcp.Description("Label ID (string) or array of label IDs to add"),
		),
		mcp.WithString("removeLabelIds",
			mcp.Description("Label ID (string) or array of label IDs to remove"),
		),
		mcp.WithNumber("maxMessages",
			mcp.Description("Maximum number of messages to touch (default: no limit)"),
		),
	)
	addTool(s, sc, modifyLabelTool, handleEnqueueModifyLabel)

	if readOnly {
		return nil
	}

	deleteTool := mcp.NewTool("sweeper_enqueue_delete",
		mcp.WithDescription("Move all messages from a sender (or matching a query) to trash"),
		mcp.WithString("sender",
			mcp.Description("Sender email address scoping the job"),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query, used instead of or in addition to sender"),
		),
		mcp.WithNumber("maxMessages",
			mcp.Description("Maximum number of messages to touch (default: no limit)"),
		),
	)
	addTool(s, sc, deleteTool, handleEnqueueDelete)

	deleteWithExceptionsTool := mcp.NewTool("sweeper_enqueue_delete_with_exceptions",
		mcp.WithDescription("Move all messages from a sender to trash, sparing the listed message IDs"),
		mcp.WithString("sender",
			mcp.Required(),
			mcp.Description("Sender email address scoping the job"),
		),
		mcp.WithString("excludeMessageIds",
			mcp.Required(),
			mcp.Description("Message ID (string) or array of message IDs to spare"),
		),
		mcp.WithNumber("maxMessages",
			mcp.Description("Maximum number of messages to touch (default: no limit)"),
		),
	)
	addTool(s, sc, deleteWithExceptionsTool, handleEnqueueDeleteWithExceptions)

	createFilterTool := mcp.NewTool("sweeper_enqueue_create_filter",
		mcp.WithDescription("Create a Gmail filter for future messages from a sender"),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Sender email address the filter matches"),
		),
		mcp.WithBoolean("archive",
			mcp.Description("Skip the inbox for matching messages"),
		),
		mcp.WithBoolean("markRead",
			mcp.Description("Mark matching messages as read"),
		),
		mcp.WithBoolean("delete",
			mcp.Description("Move matching messages to trash"),
		),
		mcp.WithString("addLabelIds",
			mcp.Description("Label ID (string) or array of label IDs to apply to matching messages"),
		),
	)
	addTool(s, sc, createFilterTool, handleEnqueueCreateFilter)

	unsubscribeTool := mcp.NewTool("sweeper_enqueue_unsubscribe",
		mcp.WithDescription("Unsubscribe from a sender via its List-Unsubscribe header, falling back to an archive filter for mailto-only senders"),
		mcp.WithString("sender",
			mcp.Description("Sender email address to unsubscribe from"),
		),
		mcp.WithString("messageId",
			mcp.Description("Message whose List-Unsubscribe header to follow (default: newest message from sender)"),
		),
	)
	addTool(s, sc, unsubscribeTool, handleEnqueueUnsubscribe)

	return nil
}

func handleEnqueueAnalysis(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	return enqueue(sc, engine.Request{
		Kind:        engine.KindAnalysis,
		Query:       stringArg(args, "query"),
		MaxMessages: intArg(args, "maxMessages"),
	})
}

func handleEnqueueDelete(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	return enqueue(sc, engine.Request{
		Kind:        engine.KindDelete,
		Sender:      stringArg(args, "sender"),
		Query:       stringArg(args, "query"),
		MaxMessages: intArg(args, "maxMessages"),
	})
}

func handleEnqueueDeleteWithExceptions(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	excluded, err := batch.ParseStringOrArray(args["excludeMessageIds"], "excludeMessageIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return enqueue(sc, engine.Request{
		Kind:        engine.KindDeleteWithExceptions,
		Sender:      stringArg(args, "sender"),
		ExcludedIDs: excluded,
		MaxMessages: intArg(args, "maxMessages"),
	})
}

func handleEnqueueMarkRead(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	return enqueue(sc, engine.Request{
		Kind:        engine.KindMarkRead,
		Sender:      stringArg(args, "sender"),
		Query:       stringArg(args, "query"),
		MaxMessages: intArg(args, "maxMessages"),
	})
}

func handleEnqueueApplyLabel(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	label := stringArg(args, "label")
	if label == "" {
		return mcp.NewToolResultError("label is required"), nil
	}

	return enqueue(sc, engine.Request{
		Kind:        engine.KindApplyLabel,
		Sender:      stringArg(args, "sender"),
		Query:       stringArg(args, "query"),
		LabelName:   label,
		MaxMessages: intArg(args, "maxMessages"),
	})
}

func handleEnqueueModifyLabel(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var addIDs, removeIDs []string
	var err error
	if args["addLabelIds"] != nil {
		if addIDs, err = batch.ParseStringOrArray(args["addLabelIds"], "addLabelIds"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if args["removeLabelIds"] != nil {
		if removeIDs, err = batch.ParseStringOrArray(args["removeLabelIds"], "removeLabelIds"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return enqueue(sc, engine.Request{
		Kind:           engine.KindModifyLabel,
		Sender:         stringArg(args, "sender"),
		Query:          stringArg(args, "query"),
		AddLabelIDs:    addIDs,
		RemoveLabelIDs: removeIDs,
		MaxMessages:    intArg(args, "maxMessages"),
	})
}

func handleEnqueueCreateFilter(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	from := stringArg(args, "from")
	if from == "" {
		return mcp.NewToolResultError("from is required"), nil
	}

	var addIDs []string
	var err error
	if args["addLabelIds"] != nil {
		if addIDs, err = batch.ParseStringOrArray(args["addLabelIds"], "addLabelIds"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return enqueue(sc, engine.Request{
		Kind:           engine.KindCreateFilter,
		Sender:         from,
		FilterCriteria: gmail.FilterCriteria{From: from},
		FilterAction: gmail.FilterAction{
			AddLabelIDs: addIDs,
			Archive:     boolArg(args, "archive"),
			MarkAsRead:  boolArg(args, "markRead"),
			Delete:      boolArg(args, "delete"),
		},
	})
}

func handleEnqueueUnsubscribe(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	return enqueue(sc, engine.Request{
		Kind:      engine.KindUnsubscribe,
		Sender:    stringArg(args, "sender"),
		MessageID: stringArg(args, "messageId"),
	})
}
