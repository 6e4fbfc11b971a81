// Package cmd provides the recallkit CLI commands.
//
// Commands:
//   - ingest: chunk and store markdown documents
//   - search: semantic search over stored chunks
//   - mcp: Model Context Protocol server on stdio for agent integration
//   - version: build information
//
// All commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recallkit",
	Short: "Markdown knowledge base with code-aware chunking",
	Long: `recallkit ingests markdown documents into a searchable knowledge base.

Documents are split along their headings into size-bounded chunks. Fenced
code blocks are lifted out before embedding so vectors capture the prose,
and are stored alongside their chunk for lossless retrieval.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
