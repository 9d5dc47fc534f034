package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathysgrapotte/gonf/internal/tracing"
	"github.com/mathysgrapotte/gonf/pkg/engine"
	"github.com/mathysgrapotte/gonf/pkg/execution"
	"github.com/mathysgrapotte/gonf/pkg/inputs"
)

var (
	runInputsJSON string
	runParamsJSON string
	runExecutor   string
	runDocker     bool
	runRegistry   string
	runForce      bool
	runOTLP       string
)

var runModuleCmd = &cobra.Command{
	Use:   "run <module>",
	Short: "Run a module on the embedded engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if runOTLP != "" {
			config := tracing.DefaultConfig("gonf")
			config.OTLPEndpoint = runOTLP
			shutdown, err := tracing.Setup(cmd.Context(), config, logger)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(cmd.Context()) }()
		}

		req := execution.Request{
			BundlePath: bundlePath,
			Executor:   runExecutor,
			Verbose:    verbose,
			Logger:     logger,
		}

		if runParamsJSON != "" {
			params, err := parseParams(runParamsJSON)
			if err != nil {
				return err
			}
			req.Params = params
		}
		if runInputsJSON != "" {
			var groups []inputs.Group
			if err := json.Unmarshal([]byte(runInputsJSON), &groups); err != nil {
				return fmt.Errorf("parsing --inputs (must be a JSON list of objects): %w", err)
			}
			req.Inputs = groups
		}
		if runDocker {
			req.Docker = &engine.DockerConfig{
				Enabled:  true,
				Registry: runRegistry,
			}
		}

		cmd.Printf("Running module: %s\n", args[0])
		cmd.Printf("Executor: %s\n", runExecutor)

		res, err := service.RunModule(cmd.Context(), args[0], req, runForce)
		if err != nil {
			return err
		}

		report := res.Report()
		cmd.Println("\nModule execution completed!")
		cmd.Printf("  Completed tasks: %d\n", report.Completed)
		cmd.Printf("  Failed tasks:    %d\n", report.Failed)
		cmd.Printf("  Work dir:        %s\n", report.WorkDir)

		if files := res.OutputFiles(); len(files) > 0 {
			cmd.Println("\nOutput files:")
			for _, file := range files {
				cmd.Printf("  - %s\n", file)
			}
		}
		if outputs := res.WorkflowOutputs(); len(outputs) > 0 {
			cmd.Println("\nWorkflow outputs:")
			for _, output := range outputs {
				cmd.Printf("  - %s: %v\n", output.Name, output.Value)
			}
		}
		return nil
	},
}

// parseParams accepts either a JSON object or comma-separated key=value
// pairs. Values from the key=value form stay strings.
func parseParams(raw string) (map[string]interface{}, error) {
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("parsing --params (must be a JSON object): %w", err)
		}
		return params, nil
	}

	params := make(map[string]interface{})
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parsing --params: %q is not key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

func init() {
	runModuleCmd.Flags().StringVar(&runInputsJSON, "inputs", "", "input groups as a JSON list of objects")
	runModuleCmd.Flags().StringVar(&runParamsJSON, "params", "", "script parameters as a JSON object or comma-separated key=value pairs")
	runModuleCmd.Flags().StringVar(&runExecutor, "executor", "local", "engine executor name")
	runModuleCmd.Flags().BoolVar(&runDocker, "docker", false, "run tasks in docker containers")
	runModuleCmd.Flags().StringVar(&runRegistry, "docker-registry", "", "docker registry override")
	runModuleCmd.Flags().BoolVar(&runForce, "force", false, "re-download the module even when cached")
	runModuleCmd.Flags().StringVar(&runOTLP, "otlp-endpoint", "", "OTLP trace collector endpoint (host:port), tracing disabled when empty")
	rootCmd.AddCommand(runModuleCmd)
}
