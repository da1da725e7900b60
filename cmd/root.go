package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxsweeper application
var rootCmd = &cobra.Command{
	Use:   "inboxsweeper",
	Short: "Bulk Gmail cleanup driven by sender",
	Long: `inboxsweeper runs bulk operations against a Gmail mailbox: analyzing
which senders dominate it, then deleting, labeling, filtering or
unsubscribing from them in batches.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants (default)
  - A one-shot CLI (sweep, analyze)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxsweeper version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
