// Package cmd implements the command-line interface for inboxsweeper.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing sweep tools to AI assistants
//   - sweep: Run a single bulk operation (delete, mark read, label,
//     filter, unsubscribe) and wait for it
//   - analyze: Scan the mailbox and rank senders by message volume
//   - version: Display version information
//
// The serve command is the default command when no subcommand is
// specified.
package cmd
