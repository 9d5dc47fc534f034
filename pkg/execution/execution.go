// Package execution drives the full lifecycle of one workflow run: engine
// boot, session setup, parameter injection, introspection, validation,
// observation, execution, and the final result snapshot.
package execution

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mathysgrapotte/gonf/internal/logging"
	"github.com/mathysgrapotte/gonf/pkg/engine"
	"github.com/mathysgrapotte/gonf/pkg/events"
	"github.com/mathysgrapotte/gonf/pkg/inputs"
	"github.com/mathysgrapotte/gonf/pkg/result"
	"github.com/mathysgrapotte/gonf/pkg/schema"
)

const tracerName = "github.com/mathysgrapotte/gonf/pkg/execution"

// Request describes one workflow execution. A Request is consumed once;
// reusing it for a second call is fine, reusing anything it produced is not.
type Request struct {
	// ScriptPath locates the pipeline script to run.
	ScriptPath string

	// BundlePath overrides engine bundle resolution when non-empty.
	BundlePath string

	// Executor names the engine executor. Empty keeps the engine default.
	Executor string

	// Params are script-level variables set on the session binding before
	// the script is parsed.
	Params map[string]interface{}

	// Inputs are positional input groups matched against the script's
	// declared channels. Nil skips validation and injection entirely.
	Inputs []inputs.Group

	// Docker, when set, is written into the session config before start.
	Docker *engine.DockerConfig

	// Verbose enables debug logging for this run.
	Verbose bool

	// Logger overrides the logger built from Verbose. Mostly for callers
	// that already own one.
	Logger *zap.Logger
}

// Execute runs the request to completion and returns the result snapshot.
// The snapshot is taken strictly before session teardown, and the session is
// destroyed on every path, including failures and panics inside the engine.
//
// There is no retry, timeout, or cancellation here: a hanging workflow hangs
// the caller. The context feeds the trace span only.
func Execute(ctx context.Context, req Request) (*result.Result, error) {
	logger := req.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(req.Verbose)
		if err != nil {
			return nil, err
		}
		defer func() { _ = logger.Sync() }()
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("runID", runID), zap.String("script", req.ScriptPath))

	_, span := otel.Tracer(tracerName).Start(ctx, "execution.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("gonf.run_id", runID),
		attribute.String("gonf.script_path", req.ScriptPath),
	)

	res, err := run(req, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow execution failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func run(req Request, logger *zap.Logger) (*result.Result, error) {
	rt, err := engine.EnsureStarted(engine.ResolveBundlePath(req.BundlePath), logger)
	if err != nil {
		return nil, err
	}

	session, err := rt.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if req.Docker != nil {
		if err := session.ConfigureDocker(*req.Docker); err != nil {
			return nil, err
		}
	}
	if err := session.SetExecutor(req.Executor); err != nil {
		return nil, err
	}

	if err := session.Init(req.ScriptPath); err != nil {
		return nil, err
	}
	if err := session.Start(); err != nil {
		return nil, err
	}

	for _, name := range sortedKeys(req.Params) {
		if err := session.SetBindingVariable(name, req.Params[name]); err != nil {
			return nil, err
		}
	}

	loader, err := session.NewLoader()
	if err != nil {
		return nil, err
	}
	if err := loader.Parse(req.ScriptPath); err != nil {
		return nil, err
	}

	channels, err := schema.InputChannels(loader, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("discovered input channels", zap.Int("count", len(channels)))

	if len(req.Inputs) > 0 {
		if err := inputs.Validate(channels, req.Inputs); err != nil {
			return nil, err
		}
		if err := inputs.Inject(session, channels, req.Inputs); err != nil {
			return nil, err
		}
	}

	collector := events.NewCollector(logger)
	if err := session.RegisterObserver(collector.Hooks(rt.ObserverHooks())); err != nil {
		// The run still works without event collection, it just loses
		// output attribution and falls back to workdir scanning.
		logger.Warn("observer registration failed", zap.Error(err))
	}

	if err := session.Run(loader); err != nil {
		return nil, err
	}

	res, err := result.Build(session, collector)
	if err != nil {
		return nil, err
	}

	report := res.Report()
	logger.Debug("workflow completed",
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.String("workDir", report.WorkDir))
	return res, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
