package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/engine"
	"github.com/mcpgw/registry/internal/store"
)

// NewReindexCmd creates the 'reindex' command for forcing re-embedding.
func NewReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex [id]",
		Short: "Force re-embedding of one entity or the whole registry",
		Long: `Recompute embeddings and rebuild the derived indexes.

With an id, only that entity and its tools are re-embedded. Without
arguments everything is re-embedded, which is the escape hatch after
changing the embedding model.`,
		Example: `  mcpgw reindex            # everything
  mcpgw reindex /fininfo   # one entity and its tools`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := engine.ReindexAll
			if len(args) == 1 {
				target = args[0]
			}
			return runReindex(target)
		},
	}
	return cmd
}

func runReindex(target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "info", false)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.Reindex(ctx, target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no entity registered as %s", target)
		}
		return err
	}

	if target == engine.ReindexAll {
		fmt.Println("Reindexed all entities.")
	} else {
		fmt.Printf("Reindexed %s\n", target)
	}
	return nil
}
