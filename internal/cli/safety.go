package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/store"
)

// NewSafetyCmd creates the 'safety' command for recording scanner
// verdicts.
func NewSafetyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safety <id> <safe|unsafe|pending>",
		Short: "Record a security verdict for an entity",
		Long: `Set the safety status of an entity.

Anything other than "safe" excludes the entity from discovery, the same
way disabling it does.`,
		Example: `  mcpgw safety /fininfo safe
  mcpgw safety /sketchy-server unsafe`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSafety(args[0], args[1])
		},
	}
	return cmd
}

func runSafety(id, status string) error {
	s := store.SafetyStatus(status)
	switch s {
	case store.SafetySafe, store.SafetyUnsafe, store.SafetyPending:
	default:
		return fmt.Errorf("invalid status %q (expected safe, unsafe, or pending)", status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := buildRuntime(ctx, "warn", false)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.store.SetSafety(id, s); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no entity registered as %s", id)
		}
		return err
	}
	fmt.Printf("Marked %s as %s\n", id, status)
	return nil
}
