package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve read-only vault metadata to AI assistants over MCP",
	Long: `Start a Model Context Protocol server on stdio.

Tools never return plaintext values:
  - folder_list:       folders with secret counts
  - secret_list:       secret names, keys and folders
  - secret_exists:     whether a secret exists
  - secret_get_masked: a masked value such as "********wxyz"

The mcp_tools list in ~/.passlocal/config.yaml limits which tools are
offered. The master password is read from PASSLOCAL_PASSWORD, which is
removed from the environment right after startup.

Example client configuration:
  {
    "mcpServers": {
      "passlocal": {
        "command": "/path/to/passlocal",
        "args": ["mcp-server"],
        "env": {"PASSLOCAL_PASSWORD": "..."}
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer()
	},
}

func runMCPServer() error {
	password, ok := cli.PasswordFromEnv()
	if !ok || password == "" {
		return mcp.ErrNoPassword
	}

	server, err := mcp.NewServer(mcp.ServerOptions{
		Store:     store,
		Password:  password,
		Audit:     auditLog,
		AllowTool: cfg.MCPToolAllowed,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", mcp.Version).Msg("mcp server listening on stdio")
	if err := server.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
