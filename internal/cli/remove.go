package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/store"
)

// NewRemoveCmd creates the 'remove' command for deleting an entity.
func NewRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an entity and everything derived from it",
		Long: `Delete an entity from the registry.

Its tool manifest, group memberships, and cached embeddings are removed
with it.`,
		Example: `  mcpgw remove /fininfo`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(args[0])
		},
	}
	return cmd
}

func runRemove(id string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.store.DeleteEntity(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no entity registered as %s", id)
		}
		return err
	}
	fmt.Printf("Removed %s\n", id)
	return nil
}
