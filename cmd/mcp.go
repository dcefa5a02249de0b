package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/0xArtex/excalidraw-mcp/pkg/tools"
)

var (
	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long:  longMCP,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, canvasSrv := newCanvasStack()
			defer scenes.Registry().StopSweeper()

			// The canvas server runs alongside stdio so that tool calls
			// and browser clients operate on the same sessions.
			go func() {
				if err := canvasSrv.Start(listenAddr()); err != nil {
					log.Error("canvas server stopped", "error", err)
				}
			}()

			srv := server.NewMCPServer(
				"excalidraw",
				version,
				server.WithLogging(),
			)

			tools.RegisterCanvasTools(srv, scenes)

			return server.ServeStdio(srv)
		},
	}
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var longMCP = `
Serve the canvas tools over the Model Context Protocol on stdio.

The canvas HTTP server is started in the background on the configured
address, so diagrams drawn through tool calls are immediately visible to
any connected browser.

Examples:
  # Serve the MCP tools on stdio
  excalidraw-mcp mcp
`
