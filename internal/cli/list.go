package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/store"
)

// NewListCmd creates the 'list' command for listing registered entities.
func NewListCmd() *cobra.Command {
	var (
		kind       string
		jsonOutput bool
		all        bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered entities",
		Example: `  mcpgw list
  mcpgw list --kind agent
  mcpgw list --all   # include disabled and unsafe entities
  mcpgw list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListEntities(kind, jsonOutput, all)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Filter by kind (server|agent)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include disabled and unsafe entities")

	return cmd
}

func runListEntities(kind string, jsonOutput, all bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	filter := store.Filter{DiscoverableOnly: !all}
	if kind != "" {
		filter.Kinds = []store.Kind{store.Kind(kind)}
	}
	entities, err := rt.store.ListEntities(filter)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entities)
	}

	if len(entities) == 0 {
		fmt.Println("No entities registered.")
		fmt.Println("Run 'mcpgw register <id> --name ...' to add one.")
		return nil
	}

	fmt.Printf("Registered entities (%d):\n\n", len(entities))
	for _, e := range entities {
		tools, err := rt.store.ToolsFor(e.ID)
		if err != nil {
			return err
		}
		groups, err := rt.store.GroupsFor(e.ID)
		if err != nil {
			return err
		}

		fmt.Printf("  %s  [%s]\n", e.ID, e.Kind)
		fmt.Printf("    Name:    %s\n", e.DisplayName)
		if e.Description != "" {
			fmt.Printf("    About:   %s\n", e.Description)
		}
		fmt.Printf("    Groups:  %s\n", groupsLabel(groups))
		if len(tools) > 0 {
			fmt.Printf("    Tools:   %d\n", len(tools))
		}
		if !e.Enabled || e.Safety != store.SafetySafe {
			fmt.Printf("    Status:  %s\n", statusLabel(e))
		}
		fmt.Println()
	}
	return nil
}

func statusLabel(e store.Entity) string {
	var parts []string
	if !e.Enabled {
		parts = append(parts, "disabled")
	}
	if e.Safety != store.SafetySafe {
		parts = append(parts, "safety: "+string(e.Safety))
	}
	return strings.Join(parts, ", ")
}
