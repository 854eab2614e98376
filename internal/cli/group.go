package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/store"
)

// NewGroupCmd creates the 'group' command for managing access-group
// memberships.
func NewGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage access-group memberships",
		Long: `Control which groups may discover an entity.

An entity in the "public" group is visible to every caller. An entity
with no groups at all is visible to admins only.`,
	}
	cmd.AddCommand(newGroupAssignCmd(), newGroupRemoveCmd())
	return cmd
}

func newGroupAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "assign <group> <id>",
		Short:   "Add an entity to an access group",
		Example: `  mcpgw group assign team-finance /fininfo`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupChange(args[0], args[1], true)
		},
	}
}

func newGroupRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <group> <id>",
		Short:   "Remove an entity from an access group",
		Example: `  mcpgw group remove public /fininfo`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupChange(args[0], args[1], false)
		},
	}
}

func runGroupChange(group, id string, assign bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	if assign {
		err = rt.store.AssignGroup(group, id)
	} else {
		err = rt.store.RemoveGroup(group, id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if assign {
				return fmt.Errorf("no entity registered as %s", id)
			}
			return fmt.Errorf("%s is not a member of %s", id, group)
		}
		return err
	}

	if assign {
		fmt.Printf("Assigned %s to %s\n", id, group)
	} else {
		fmt.Printf("Removed %s from %s\n", id, group)
	}
	return nil
}
