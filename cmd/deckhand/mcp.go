package main

import (
	"os"
	"path/filepath"

	"github.com/quayside/deckhand/pkg/apropos"
	"github.com/quayside/deckhand/pkg/logger"
	"github.com/quayside/deckhand/pkg/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the artifact index over the Model Context Protocol",
	Long: `Run deckhand as an MCP server speaking the stdio transport.

This mode lets agent frontends search and list the skill and command index
through the search_artifacts and list_artifacts tools. Stdout carries the
protocol, so all logging goes to stderr.

Example:
  # Launch as a subprocess from an MCP client
  deckhand mcp

  # Index an additional corpus root
  deckhand mcp --root . --root ~/agents`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringArray("root", []string{"."}, "Corpus root to index (repeatable)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	// Stdout belongs to the protocol
	logger.SetLogOutput(os.Stderr)
	logger.SetLogLevel(viper.GetString("log_level"))

	roots, err := cmd.Flags().GetStringArray("root")
	if err != nil || len(roots) == 0 {
		roots = []string{"."}
	}
	indexPath := filepath.Join(roots[0], apropos.DefaultIndexPath)

	server := mcp.NewServer(indexPath, roots)
	return mcp.ServeStdio(server)
}
