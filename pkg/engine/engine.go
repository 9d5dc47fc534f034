// Package engine is the bridge between Go and the embedded Nextflow engine
// bundle, a JavaScript build of the workflow engine executed on a goja VM.
//
// The bridge is a process-wide singleton: the engine bundle is evaluated once
// and cannot be rebooted with a different bundle afterwards. This mirrors a
// hard property of the embedded engine, not a design choice. Re-entry with
// the same bundle path is a no-op; a different path yields ErrAlreadyStarted.
//
// The VM is not safe for concurrent use, so the bridge hands out one session
// at a time; concurrent callers block in NewSession until the current session
// is closed.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	gonferrors "github.com/mathysgrapotte/gonf/pkg/errors"
)

// DefaultBundlePath is where the build tooling drops the engine bundle.
const DefaultBundlePath = "nextflow/build/releases/nextflow-25.10.0-one.js"

// BundlePathEnv overrides the bundle location when no explicit path is given.
const BundlePathEnv = "NEXTFLOW_BUNDLE_PATH"

// rootHandleName is the global the bundle installs its API under.
const rootHandleName = "nextflow"

var (
	bootMu  sync.Mutex
	current *Runtime
)

// Runtime owns the goja VM running the engine bundle and the fixed set of
// type handles resolved from it. All engine objects reachable from a Runtime
// are opaque capability tokens; member access goes through the version
// adapter selected at boot.
type Runtime struct {
	vm         *goja.Runtime
	bundlePath string
	api        api
	root       *goja.Object
	hooks      []string
	logger     *zap.Logger

	// sessMu serializes sessions: held from NewSession until Session.Close.
	sessMu sync.Mutex
}

// ResolveBundlePath resolves the engine bundle location from an explicit
// override, the NEXTFLOW_BUNDLE_PATH environment variable, or the default
// build location, in that order.
func ResolveBundlePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(BundlePathEnv); env != "" {
		return env
	}
	return DefaultBundlePath
}

// EnsureStarted boots the engine with the given bundle if it is not already
// running. Subsequent calls with the same bundle path return the running
// bridge; a different path fails with ErrAlreadyStarted because the embedded
// engine cannot be restarted within one process.
func EnsureStarted(bundlePath string, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clean := filepath.Clean(bundlePath)

	bootMu.Lock()
	defer bootMu.Unlock()

	if current != nil {
		if current.bundlePath == clean {
			return current, nil
		}
		return nil, gonferrors.NewError(
			gonferrors.CodeRuntimeRestart,
			fmt.Sprintf("engine already started with bundle %s, cannot restart with %s", current.bundlePath, clean),
			gonferrors.ErrAlreadyStarted,
		)
	}

	rt, err := newRuntime(clean, logger)
	if err != nil {
		return nil, err
	}
	current = rt
	return rt, nil
}

// newRuntime boots a fresh VM with the bundle. Exported callers go through
// EnsureStarted; tests construct runtimes directly to sidestep the singleton.
func newRuntime(bundlePath string, logger *zap.Logger) (*Runtime, error) {
	if _, err := os.Stat(bundlePath); err != nil {
		return nil, gonferrors.NewError(
			gonferrors.CodeArtifactNotFound,
			missingBundleMessage(bundlePath),
			gonferrors.ErrBundleNotFound,
		)
	}

	src, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, gonferrors.NewError(gonferrors.CodeArtifactNotFound, fmt.Sprintf("reading engine bundle %s", bundlePath), err)
	}

	rt := &Runtime{
		vm:         goja.New(),
		bundlePath: bundlePath,
		logger:     logger,
	}
	if err := rt.installHost(); err != nil {
		return nil, fmt.Errorf("installing host shims: %w", err)
	}

	if _, err := rt.vm.RunScript(filepath.Base(bundlePath), string(src)); err != nil {
		return nil, fmt.Errorf("evaluating engine bundle %s: %w", bundlePath, err)
	}

	rootVal := rt.vm.Get(rootHandleName)
	if rootVal == nil || goja.IsUndefined(rootVal) || goja.IsNull(rootVal) {
		return nil, fmt.Errorf("engine bundle %s did not install the %q global", bundlePath, rootHandleName)
	}
	rt.root = rootVal.ToObject(rt.vm)

	rt.api, err = selectAPI(rt)
	if err != nil {
		return nil, err
	}
	rt.hooks, err = rt.api.requiredHooks()
	if err != nil {
		return nil, fmt.Errorf("resolving observer hook descriptor: %w", err)
	}

	logger.Debug("engine started",
		zap.String("bundle", bundlePath),
		zap.Int("observerHooks", len(rt.hooks)))
	return rt, nil
}

// ObserverHooks returns the hook names the engine's observer interface
// requires. A registered observer must implement every one of them.
func (rt *Runtime) ObserverHooks() []string {
	out := make([]string, len(rt.hooks))
	copy(out, rt.hooks)
	return out
}

// BundlePath returns the bundle the engine was booted with.
func (rt *Runtime) BundlePath() string {
	return rt.bundlePath
}

// installHost exposes the narrow host surface the bundle needs. The loader
// reads pipeline sources through it; nothing else crosses this boundary.
func (rt *Runtime) installHost() error {
	host := rt.vm.NewObject()

	if err := host.Set("readFile", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		data, err := os.ReadFile(name)
		if err != nil {
			panic(rt.vm.NewGoError(err))
		}
		return rt.vm.ToValue(string(data))
	}); err != nil {
		return err
	}

	if err := host.Set("absPath", func(call goja.FunctionCall) goja.Value {
		abs, err := filepath.Abs(call.Argument(0).String())
		if err != nil {
			panic(rt.vm.NewGoError(err))
		}
		return rt.vm.ToValue(abs)
	}); err != nil {
		return err
	}

	return rt.vm.Set("__host", host)
}

func missingBundleMessage(bundlePath string) string {
	sep := "======================================================================"
	return fmt.Sprintf(`
%s
ERROR: Nextflow engine bundle not found at: %s
%s

gonf requires a Nextflow engine bundle to run.

To set up the engine automatically, run:
    make engine

This will fetch and build the engine bundle for you.

Alternatively, you can set up manually:
1. Clone: git clone https://github.com/nextflow-io/nextflow.git
2. Build the JS bundle: cd nextflow && make pack-js
3. Point %s at the built bundle
%s
`, sep, bundlePath, sep, BundlePathEnv, sep)
}
