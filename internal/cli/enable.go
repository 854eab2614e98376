package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/store"
)

// NewEnableCmd creates the 'enable' command.
func NewEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "enable <id>",
		Short:   "Make an entity discoverable again",
		Example: `  mcpgw enable /fininfo`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetEnabled(args[0], true)
		},
	}
}

// NewDisableCmd creates the 'disable' command.
func NewDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Hide an entity from discovery without removing it",
		Long: `Disable an entity.

The entity and its tools stop appearing in search results immediately,
but the registration and its cached embeddings are kept, so re-enabling
is cheap.`,
		Example: `  mcpgw disable /fininfo`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetEnabled(args[0], false)
		},
	}
}

func runSetEnabled(id string, enabled bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.store.SetEnabled(id, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no entity registered as %s", id)
		}
		return err
	}

	if enabled {
		// Bring the indexes up to date before the command exits.
		if err := rt.engine.Reindex(ctx, id); err != nil {
			return fmt.Errorf("enabled but indexing failed: %w", err)
		}
		fmt.Printf("Enabled %s\n", id)
	} else {
		fmt.Printf("Disabled %s\n", id)
	}
	return nil
}
