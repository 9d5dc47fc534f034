package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mathysgrapotte/gonf/internal/github"
	"github.com/mathysgrapotte/gonf/internal/logging"
	"github.com/mathysgrapotte/gonf/pkg/registry"
)

var (
	cacheDir    string
	githubToken string
	bundlePath  string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "gonf",
	Short: "Run nf-core pipeline modules on the embedded Nextflow engine",
	Long: `gonf drives an embedded build of the Nextflow workflow engine to list,
download, inspect, and run nf-core pipeline modules.

Common workflows:

  List available modules:
    gonf list --limit 20

  Download a module into the local cache:
    gonf download fastqc

  Inspect a cached module:
    gonf inspect fastqc

  Show a module's declared inputs:
    gonf inputs fastqc

  Run a module:
    gonf run fastqc --inputs '[{"reads": "sample.fastq"}]' --docker

Configuration:
  GITHUB_TOKEN           GitHub token for authenticated API requests
  NEXTFLOW_BUNDLE_PATH   Location of the Nextflow engine bundle`,
	SilenceUsage: true,
}

// Execute runs the CLI. Errors have already been printed by cobra when this
// returns non-nil.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "./nf-core-modules", "directory for cached nf-core modules")
	rootCmd.PersistentFlags().StringVar(&githubToken, "github-token", "", "GitHub token for authenticated API requests")
	rootCmd.PersistentFlags().StringVar(&bundlePath, "bundle", "", "path to the Nextflow engine bundle")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	_ = viper.BindPFlag("github_token", rootCmd.PersistentFlags().Lookup("github-token"))
	_ = viper.BindEnv("github_token", "GITHUB_TOKEN")
}

func initConfig() {
	viper.AutomaticEnv()
}

func resolveToken() string {
	return viper.GetString("github_token")
}

func newService() (*registry.Service, *zap.Logger, error) {
	logger, err := logging.New(verbose)
	if err != nil {
		return nil, nil, err
	}
	cache := registry.NewCache(cacheDir)
	client := github.NewClient(resolveToken())
	return registry.NewService(cache, client, logger), logger, nil
}
