package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/scenebridge/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server",
	Long: `Run as an MCP (Model Context Protocol) server over stdio.

Tool calls are forwarded to a running scenebridge server, which is dialed on
first use and redialed if the connection drops. Start the server separately
with "scenebridge serve".`,
	RunE: runMCP,
}

var mcpURL string

func init() {
	mcpCmd.Flags().StringVar(&mcpURL, "url", "", "Server URL (default: from config)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := mcpURL
	if url == "" {
		url = cfg.URL()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := tools.NewSceneTools(url, 30*time.Second, log)
	defer st.Close()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `Scene editing tools backed by a scenebridge server.

Available tools:
- scene_command: Send any command (create_node, modify_node, undo, play, ...)
- scene_tree: Show the open scene hierarchy
- snapshot: Visual regression baselines of the rendered viewport`,
		},
	)
	tools.RegisterSceneTools(server, st)

	log.Info("starting MCP server", "version", appVersion, "url", url)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("MCP server stopped")
	return nil
}
