package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/scope"
	"github.com/mcpgw/registry/internal/search"
	"github.com/mcpgw/registry/internal/store"
)

// NewSearchCmd creates the 'search' command for querying the registry
// from the shell.
func NewSearchCmd() *cobra.Command {
	var (
		scopes     []string
		admin      bool
		maxResults int
		kinds      []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid search across servers, tools, and agents",
		Long: `Search the registry with a natural language query.

Results are ranked by combined semantic and keyword relevance and
restricted to the groups given via --scope (plus public). Use --admin
to search without scope restriction.`,
		Example: `  mcpgw search "stock price lookup" --scope team-finance
  mcpgw search "weather forecast" --kinds tool --max 5
  mcpgw search "database admin" --admin --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "), scopes, admin,
				maxResults, kinds, jsonOutput)
		},
	}

	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "Authorized group (repeatable)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Search with the admin scope")
	cmd.Flags().IntVarP(&maxResults, "max", "m", 10, "Maximum results per entity kind")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "Restrict to kinds (server,tool,agent)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runSearch(query string, scopes []string, admin bool,
	maxResults int, rawKinds []string, jsonOutput bool) error {

	var kinds []store.Kind
	for _, k := range rawKinds {
		switch store.Kind(k) {
		case store.KindServer, store.KindTool, store.KindAgent:
			kinds = append(kinds, store.Kind(k))
		default:
			return fmt.Errorf("invalid kind %q (expected server, tool, or agent)", k)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	caller := scope.CallerScope{AuthorizedGroups: scopes, IsAdmin: admin}
	resp, err := rt.engine.Discover(ctx, query, caller, maxResults, kinds)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	total := len(resp.Servers) + len(resp.Tools) + len(resp.Agents)
	if total == 0 {
		fmt.Println("No results.")
		return nil
	}

	printSection("Servers", resp.Servers)
	printSection("Tools", resp.Tools)
	printSection("Agents", resp.Agents)
	return nil
}

func printSection(title string, results []search.ScoredResult) {
	if len(results) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, r := range results {
		fmt.Printf("  %.3f  %s (%s)\n", r.Score, r.DisplayName, r.EntityID)
		if r.Snippet != "" {
			fmt.Printf("         %s\n", r.Snippet)
		}
	}
	fmt.Println()
}
