package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <module>",
	Short: "Show metadata and source preview for a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		info, err := service.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if inspectJSON {
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}

		cmd.Printf("Module: %s\n", info.Name)
		cmd.Printf("Location: %s\n", info.Path)
		cmd.Println("\nmeta.yml:")
		cmd.Println(info.MetaRaw)
		cmd.Printf("\nmain.nf: (%d lines)\n", info.MainNFLines)
		for _, line := range info.Preview {
			cmd.Println(line)
		}
		if remaining := info.MainNFLines - len(info.Preview); remaining > 0 {
			cmd.Printf("... (%d more lines)\n", remaining)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(inspectCmd)
}
