package cmd

import (
	"github.com/spf13/cobra"
)

var downloadForce bool

var downloadCmd = &cobra.Command{
	Use:   "download <module>",
	Short: "Download a module into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		paths, err := service.Ensure(cmd.Context(), args[0], downloadForce)
		if err != nil {
			return err
		}
		cmd.Println("Module downloaded successfully!")
		cmd.Printf("  Location: %s\n", paths.Dir)
		cmd.Printf("  main.nf:  %s\n", paths.MainNF)
		cmd.Printf("  meta.yml: %s\n", paths.MetaYML)
		return nil
	},
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadForce, "force", false, "re-download even when cached")
	rootCmd.AddCommand(downloadCmd)
}
