package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets Claude Code classify complaint text and read department queues,
hotspots, chart counts and citizen progression. Configure it with:

  {
    "mcpServers": {
      "civic": { "command": "civic", "args": ["mcp"] }
    }
  }

Available tools: civic_classify, civic_department_queue, civic_hotspots,
civic_chart_counts, civic_user_progression`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	m, err := getManager()
	if err != nil {
		return err
	}

	// stdout carries the protocol; everything else goes to stderr via the logger.
	srv := mcp.NewServer(s, m, triage, buildVersion)
	return srv.ServeStdio(cmd.Context())
}
