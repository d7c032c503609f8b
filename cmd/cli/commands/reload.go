package commands

import (
	"github.com/spf13/cobra"
)

// NewReloadCmd creates the manual reload command.
func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Force a full position reload",
		Long:  "Rebuild the position collection from chain state instead of waiting for the next periodic sync.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := GetClientOrDie()
			if err := WithSpinner("Reloading positions", func() error {
				return c.Reload()
			}); err != nil {
				return err
			}
			Success("positions reloaded")
			return nil
		},
	}
}
