package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var inputsJSON bool

var inputsCmd = &cobra.Command{
	Use:   "inputs <module>",
	Short: "Show a module's declared input channels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		channels, err := service.ModuleInputs(cmd.Context(), args[0], bundlePath)
		if err != nil {
			return err
		}

		if inputsJSON {
			out, err := json.MarshalIndent(channels, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}

		if len(channels) == 0 {
			cmd.Println("Module has no declared inputs.")
			return nil
		}
		cmd.Printf("Module: %s\n", args[0])
		for idx, channel := range channels {
			cmd.Printf("\nInput Channel %d (type: %s)\n", idx+1, channel.Type)
			for _, param := range channel.Params {
				cmd.Printf("  - %s(%s)\n", param.Type, param.Name)
			}
		}
		return nil
	},
}

func init() {
	inputsCmd.Flags().BoolVar(&inputsJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(inputsCmd)
}
