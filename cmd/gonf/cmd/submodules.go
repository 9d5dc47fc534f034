package cmd

import (
	"github.com/spf13/cobra"
)

var submodulesCmd = &cobra.Command{
	Use:   "submodules <module>",
	Short: "List submodules under a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		submodules, err := service.Submodules(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(submodules) == 0 {
			cmd.Printf("No submodules found for %q.\n", args[0])
			return nil
		}
		for _, sub := range submodules {
			cmd.Printf("%s/%s\n", args[0], sub)
		}
		cmd.Printf("\nTotal: %d submodules\n", len(submodules))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submodulesCmd)
}
