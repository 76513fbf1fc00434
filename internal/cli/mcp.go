package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	liftmcp "github.com/claude/liftlog/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the workout log to MCP clients over stdio",
		Long: `Run an MCP server on stdin/stdout exposing tools to log sets and read
history, personal records and progress. Logs go to stderr.

Example client config:
  {"mcpServers": {"liftlog": {"command": "liftlog", "args": ["mcp"]}}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := liftmcp.New(a.mgr, Version, a.log)
			a.log.Info("mcp server starting", "version", Version)
			return server.ServeStdio(s)
		},
	}
}
