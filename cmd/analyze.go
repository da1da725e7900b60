package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxsweeper/internal/actionlog"
	"github.com/teemow/inboxsweeper/internal/engine"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		cfg         runtimeConfig
		query       string
		maxMessages int64
		top         int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the mailbox and rank senders by message volume",
		Long: `Scan the mailbox, aggregate messages per sender and print the
highest-volume senders. Results are persisted in the action log so a
later sweep can act on them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.loadEnv(); err != nil {
				return err
			}

			req := engine.Request{
				Kind:        engine.KindAnalysis,
				Query:       query,
				MaxMessages: maxMessages,
			}

			return runOneShot(cfg, req, func(job engine.Job) error {
				return printTopSenders(cfg, job.ID, top)
			})
		},
	}

	cfg.registerFlags(cmd)
	cmd.Flags().StringVar(&query, "query", "", "Gmail search query scoping the analysis (default: entire mailbox)")
	cmd.Flags().Int64Var(&maxMessages, "max-messages", 0, "Maximum number of messages to scan (0 = no limit)")
	cmd.Flags().IntVar(&top, "top", 20, "Number of senders to print")

	return cmd
}

func printTopSenders(cfg runtimeConfig, runID string, limit int) error {
	store, err := actionlog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open action log: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := store.TopSenders(ctx, runID, limit)
	if err != nil {
		return fmt.Errorf("read sender stats: %w", err)
	}

	fmt.Printf("Top %d senders (run %s):\n", len(stats), runID)
	for i, stat := range stats {
		fmt.Printf("%3d. %-50s %6d messages, %6d unread\n", i+1, stat.Sender, stat.MessageCount, stat.UnreadCount)
	}
	return nil
}
