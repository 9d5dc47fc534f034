package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	listLimit     int
	showRateLimit bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available nf-core modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		modules, err := service.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(modules) == 0 {
			cmd.Println("No modules found.")
			return nil
		}

		shown := modules
		if listLimit > 0 && listLimit < len(modules) {
			shown = modules[:listLimit]
		}
		for _, module := range shown {
			cmd.Println(module)
		}
		if len(shown) < len(modules) {
			cmd.Printf("\nShowing %d/%d modules (use --limit to see more)\n", len(shown), len(modules))
		} else {
			cmd.Printf("\nTotal: %d modules\n", len(modules))
		}

		if showRateLimit {
			status, err := service.RateLimit(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching rate limit: %w", err)
			}
			reset := time.Unix(status.ResetTime, 0).Format(time.RFC3339)
			cmd.Printf("\nGitHub API rate limit: %d/%d remaining (resets %s)\n",
				status.Remaining, status.Limit, reset)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "show at most this many modules (0 shows all)")
	listCmd.Flags().BoolVar(&showRateLimit, "rate-limit", false, "also show GitHub API rate limit status")
	rootCmd.AddCommand(listCmd)
}
