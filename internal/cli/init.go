package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgw/registry/internal/config"
)

// NewInitCmd creates the 'init' command that writes a default config.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to ~/.mcpgw.json",
		Example: `  mcpgw init
  mcpgw init --force  # overwrite an existing config`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func runInit(force bool) error {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
