package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/api"
	"github.com/mcpgw/registry/internal/mcp"
	"github.com/mcpgw/registry/internal/scope"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
//
// The stdio transport exposes the registry meta-tools; --http
// additionally starts the discovery HTTP API.
func NewServeCmd() *cobra.Command {
	var (
		scopes   []string
		admin    bool
		httpAPI  bool
		logLevel string
		jsonLogs bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registry MCP server (stdio transport)",
		Long: `Start the mcpgw server using stdio transport.

The server exposes three meta-tools to AI clients:
  • registry_search  - Scoped hybrid search across servers, tools, agents
  • registry_list    - List entities visible to the configured scope
  • registry_reindex - Force re-embedding (admin only)

The caller scope is fixed for the lifetime of the process via --scope
and --admin; the stdio transport carries no identity.`,
		Example: `  # Serve with the public scope only
  mcpgw serve

  # Serve for a team, with the HTTP API
  mcpgw serve --scope team-finance --scope team-data --http

  # Add to Claude Code
  claude mcp add registry -- mcpgw serve --scope team-finance`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(scopes, admin, httpAPI, logLevel, jsonLogs)
		},
	}

	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "Authorized group (repeatable)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin scope")
	cmd.Flags().BoolVar(&httpAPI, "http", false, "Also serve the HTTP API")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs")

	return cmd
}

// runServe builds the engine, starts the transports, and blocks until a
// signal arrives or stdin closes.
func runServe(scopes []string, admin, httpAPI bool, logLevel string, jsonLogs bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx, logLevel, jsonLogs)
	if err != nil {
		return err
	}
	defer rt.close()

	caller := scope.CallerScope{AuthorizedGroups: scopes, IsAdmin: admin}
	server := mcp.NewServer(rt.engine, rt.store, caller, os.Stdin, os.Stdout,
		rt.log.Named("mcp"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := make(chan error, 2)
	go func() {
		errChan <- server.Run(ctx)
	}()
	if httpAPI {
		httpServer := api.NewServer(rt.cfg.API.Addr, rt.engine, rt.log.Named("api"))
		go func() {
			errChan <- httpServer.ListenAndServe(ctx)
		}()
	}

	select {
	case sig := <-sigChan:
		rt.log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		return nil
	case err := <-errChan:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
