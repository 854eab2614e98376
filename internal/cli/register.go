package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/store"
)

// NewRegisterCmd creates the 'register' command for adding or updating
// registry entities.
func NewRegisterCmd() *cobra.Command {
	var (
		kind        string
		name        string
		description string
		tags        []string
		groups      []string
		meta        []string
		tools       []string
		owner       string
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "register <id>",
		Short: "Register or update an entity",
		Long: `Register an MCP server or A2A agent, or update an existing one.

Re-registering an existing id replaces its descriptive fields in place;
the id keeps its group memberships and enablement. New entities with no
--group are visible to admins only.`,
		Example: `  mcpgw register /fininfo --name "Financial Info Service" \
    --description "Stock quotes and market data" \
    --tags finance,stocks --group public \
    --tool "get_stock_price=Get the latest price for a ticker symbol"

  mcpgw register /weather --kind agent --name "Weather Agent" --group team-ops`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(args[0], kind, name, description, owner,
				tags, groups, meta, tools, disabled)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "server", "Entity kind (server|agent)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma-separated searchable tags")
	cmd.Flags().StringArrayVarP(&groups, "group", "g", nil, "Access group to assign (repeatable)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Custom metadata as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&tools, "tool", nil, "Tool as name=description (repeatable, servers only)")
	cmd.Flags().StringVar(&owner, "owner", "", "Owning group")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register in disabled state")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runRegister(id, kind, name, description, owner string,
	tags, groups, meta, tools []string, disabled bool) error {

	k := store.Kind(kind)
	if k != store.KindServer && k != store.KindAgent {
		return fmt.Errorf("invalid kind %q (expected server or agent)", kind)
	}

	metadata, err := parseMeta(meta)
	if err != nil {
		return err
	}
	manifest, err := parseTools(id, tools)
	if err != nil {
		return err
	}
	if k != store.KindServer && len(manifest) > 0 {
		return fmt.Errorf("--tool applies to servers only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	created, err := rt.store.PutEntity(store.Entity{
		ID:          id,
		Kind:        k,
		DisplayName: name,
		Description: description,
		Tags:        tags,
		Metadata:    metadata,
		Enabled:     !disabled,
		OwnerGroup:  owner,
		Safety:      store.SafetySafe,
	})
	if err != nil {
		return err
	}

	if len(manifest) > 0 {
		if err := rt.store.ReplaceTools(id, manifest); err != nil {
			return err
		}
	}
	for _, g := range groups {
		if err := rt.store.AssignGroup(g, id); err != nil {
			return err
		}
	}

	// Index synchronously so the entity is discoverable as soon as the
	// command returns.
	if err := rt.engine.Reindex(ctx, id); err != nil {
		return fmt.Errorf("registered but indexing failed: %w", err)
	}

	verb := "Updated"
	if created {
		verb = "Registered"
	}
	fmt.Printf("%s %s %s (%d tools, groups: %s)\n",
		verb, kind, id, len(manifest), groupsLabel(groups))
	return nil
}

func parseMeta(pairs []string) (store.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(store.Metadata, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q (expected key=value)", p)
		}
		m[key] = store.MetaStr(value)
	}
	return m, nil
}

func parseTools(serverID string, pairs []string) ([]store.Tool, error) {
	tools := make([]store.Tool, 0, len(pairs))
	for _, p := range pairs {
		name, desc, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --tool %q (expected name=description)", p)
		}
		tools = append(tools, store.Tool{
			ServerID:    serverID,
			Name:        name,
			Description: desc,
		})
	}
	return tools, nil
}

func groupsLabel(groups []string) string {
	if len(groups) == 0 {
		return "admin-only"
	}
	return strings.Join(groups, ", ")
}
