/*
Package main is the entry point for the mcpgw CLI.

mcpgw is a discovery registry for MCP servers, their tools, and A2A
agents. It answers natural-language capability queries with a hybrid
semantic + keyword ranking, restricted to the entities the caller's
access groups may see.

Usage:
  mcpgw [command]

Available Commands:
  init        Write the default configuration
  serve       Run the registry MCP server (stdio transport)
  register    Register or update an entity
  remove      Remove an entity
  list        List registered entities
  enable      Make an entity discoverable again
  disable     Hide an entity from discovery
  group       Manage access-group memberships
  safety      Record a security verdict for an entity
  search      Hybrid search across servers, tools, and agents
  reindex     Force re-embedding
  version     Show version information

Examples:
  # Register a server with a tool manifest
  mcpgw register /fininfo --name "Financial Info Service" \
    --description "Stock quotes and market data" \
    --group public --tool "get_stock_price=Get the latest price"

  # Run as MCP server for a team
  mcpgw serve --scope team-finance
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/cli"
	"github.com/mcpgw/registry/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcpgw",
		Short: "Scoped semantic discovery for MCP servers and A2A agents",
		Long: `mcpgw is a discovery registry for MCP (Model Context Protocol)
servers, their tools, and A2A agents.

Registered entities are embedded into a vector index and searched with
a hybrid semantic + keyword ranking. Every query is restricted to the
entities the caller's access groups are allowed to discover; everything
else is invisible, not just demoted.

The 'serve' command exposes the registry to AI clients as a single MCP
endpoint with three meta-tools (registry_search, registry_list,
registry_reindex); the remaining commands manage the registry from the
shell.`,
		Version: version.GetVersion(),
	}

	rootCmd.AddCommand(cli.NewInitCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewRegisterCmd())
	rootCmd.AddCommand(cli.NewRemoveCmd())
	rootCmd.AddCommand(cli.NewListCmd())
	rootCmd.AddCommand(cli.NewEnableCmd())
	rootCmd.AddCommand(cli.NewDisableCmd())
	rootCmd.AddCommand(cli.NewGroupCmd())
	rootCmd.AddCommand(cli.NewSafetyCmd())
	rootCmd.AddCommand(cli.NewSearchCmd())
	rootCmd.AddCommand(cli.NewReindexCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
