package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/contractcheck/internal/httplink"
	"github.com/DeusData/contractcheck/internal/tools"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := root.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var cfg *httplink.LinkerConfig
			if root.configPath != "" {
				if cfg, err = root.linkerConfig(""); err != nil {
					return err
				}
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			srv := tools.NewServer(st, cfg)
			slog.Info("serve.start", "db", st.Path(), "version", version)
			if err := srv.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}
}

// signalContext is shared by long-running commands.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
