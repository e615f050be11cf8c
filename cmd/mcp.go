package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client drive the contribution pipeline natively:
list targets, score issues, fork and assign, merge, submit, and poll.
Configure with:

  {
    "mcpServers": {
      "dispatch": { "command": "dispatch", "args": ["mcp"] }
    }
  }

Available tools: dispatch_list_targets, dispatch_add_target,
dispatch_remove_target, dispatch_scored_issues, dispatch_select_issue,
dispatch_fork_and_assign, dispatch_list_assignments,
dispatch_ready_to_submit, dispatch_submit_to_origin,
dispatch_submitted_prs, dispatch_poll_submitted`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := getPipeline()
		if err != nil {
			return err
		}

		poller, err := getPoller()
		if err != nil {
			return err
		}

		return mcp.NewServer(p, poller).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
