package cmd

import (
	"github.com/spf13/cobra"

	"github.com/DrunkOnJava/ingestor-service/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio, exposing ingest/ingestBatch/getJob/query to an MCP client",
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			return mcpserver.NewServer(svc).Serve(c.Context())
		},
	}
}
