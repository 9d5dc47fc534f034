package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	gonferrors "github.com/mathysgrapotte/gonf/pkg/errors"
)

const stubBundleFile = "../../internal/enginetest/testdata/engine.js"

// newTestRuntime boots a private runtime from the stub bundle, bypassing the
// process-wide singleton so tests stay independent.
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	src, err := os.ReadFile(stubBundleFile)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "engine.js")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	rt, err := newRuntime(path, zap.NewNop())
	require.NoError(t, err)
	return rt
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.nf")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestNewRuntimeMissingBundle(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "engine.js")
	_, err := newRuntime(missing, zap.NewNop())

	require.Error(t, err)
	assert.True(t, gonferrors.IsArtifactNotFound(err))
	assert.Contains(t, err.Error(), missing)
	assert.Contains(t, err.Error(), "make engine")
	assert.Contains(t, err.Error(), BundlePathEnv)
}

func TestNewRuntimeResolvesHooks(t *testing.T) {
	rt := newTestRuntime(t)

	hooks := rt.ObserverHooks()
	assert.Len(t, hooks, 13)
	assert.Contains(t, hooks, "onWorkflowOutput")
	assert.Contains(t, hooks, "onFilePublish")
	assert.Contains(t, hooks, "onTaskCached")
	assert.Equal(t, 2, rt.api.version())
}

func TestResolveBundlePath(t *testing.T) {
	t.Setenv(BundlePathEnv, "/from/env/engine.js")
	assert.Equal(t, "/explicit/engine.js", ResolveBundlePath("/explicit/engine.js"))
	assert.Equal(t, "/from/env/engine.js", ResolveBundlePath(""))

	t.Setenv(BundlePathEnv, "")
	assert.Equal(t, DefaultBundlePath, ResolveBundlePath(""))
}

var (
	sharedBundleOnce sync.Once
	sharedBundle     string
	sharedBundleErr  error
)

func sharedBundlePath(t *testing.T) string {
	t.Helper()
	sharedBundleOnce.Do(func() {
		src, err := os.ReadFile(stubBundleFile)
		if err != nil {
			sharedBundleErr = err
			return
		}
		dir, err := os.MkdirTemp("", "gonf-engine-")
		if err != nil {
			sharedBundleErr = err
			return
		}
		sharedBundle = filepath.Join(dir, "engine.js")
		sharedBundleErr = os.WriteFile(sharedBundle, src, 0o644)
	})
	require.NoError(t, sharedBundleErr)
	return sharedBundle
}

func TestEnsureStartedSingleton(t *testing.T) {
	bundle := sharedBundlePath(t)

	first, err := EnsureStarted(bundle, zap.NewNop())
	require.NoError(t, err)

	// Concurrent re-entry with the same path always yields the same bridge.
	var wg sync.WaitGroup
	results := make([]*Runtime, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rt, err := EnsureStarted(bundle, zap.NewNop())
			assert.NoError(t, err)
			results[i] = rt
		}(i)
	}
	wg.Wait()
	for _, rt := range results {
		assert.Same(t, first, rt)
	}

	// A different bundle path cannot reboot the engine.
	other := filepath.Join(t.TempDir(), "other.js")
	require.NoError(t, os.WriteFile(other, []byte("this.nextflow = {};"), 0o644))
	_, err = EnsureStarted(other, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, gonferrors.ErrAlreadyStarted)
	assert.Contains(t, err.Error(), "RUNTIME_RESTART")
	assert.Contains(t, err.Error(), bundle)
}

func TestSessionLifecycle(t *testing.T) {
	rt := newTestRuntime(t)
	script := writeScript(t, `
process({ name: 'ECHO', inputs: [val('message')] });
workflow(function () {
	task({ workdir: '/w1' });
	output('echoed', 'hello', null);
});
`)

	s, err := rt.NewSession()
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.State())

	require.NoError(t, s.Init(script))
	assert.Equal(t, StateInitialized, s.State())

	require.NoError(t, s.Start())
	assert.Equal(t, StateStarted, s.State())

	loader, err := s.NewLoader()
	require.NoError(t, err)
	require.NoError(t, loader.Parse(script))

	require.NoError(t, s.Run(loader))
	assert.Equal(t, StateRunning, s.State())

	completed, failed, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)

	workDir, err := s.WorkDir()
	require.NoError(t, err)
	assert.Equal(t, "/gonf/work", workDir)

	s.Close()
	assert.Equal(t, StateDestroyed, s.State())
	s.Close() // idempotent

	// The bridge hands out the next session once this one is closed.
	next, err := rt.NewSession()
	require.NoError(t, err)
	next.Close()
}

func TestSessionStateErrors(t *testing.T) {
	rt := newTestRuntime(t)
	script := writeScript(t, `workflow(function () {});`)

	s, err := rt.NewSession()
	require.NoError(t, err)
	defer s.Close()

	err = s.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, gonferrors.ErrSessionState)

	require.NoError(t, s.Init(script))
	err = s.Init(script)
	assert.ErrorIs(t, err, gonferrors.ErrSessionState)

	loader, err := s.NewLoader()
	require.NoError(t, err)
	require.NoError(t, loader.Parse(script))
	err = s.Run(loader)
	assert.ErrorIs(t, err, gonferrors.ErrSessionState)
}

func TestConfigureDocker(t *testing.T) {
	rt := newTestRuntime(t)
	script := writeScript(t, `workflow(function () {});`)

	s, err := rt.NewSession()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(script))

	override := true
	remove := false
	require.NoError(t, s.ConfigureDocker(DockerConfig{
		Enabled:          true,
		Registry:         "quay.io",
		RegistryOverride: &override,
		RunOptions:       "-u 1000",
		Remove:           &remove,
	}))

	config, err := rt.api.sessionConfig(s.obj)
	require.NoError(t, err)
	docker := config.Get("docker").ToObject(rt.vm)
	assert.True(t, docker.Get("enabled").ToBoolean())
	assert.Equal(t, "quay.io", docker.Get("registry").String())
	assert.True(t, docker.Get("registryOverride").ToBoolean())
	assert.Equal(t, "-u 1000", docker.Get("runOptions").String())
	assert.False(t, docker.Get("remove").ToBoolean())

	require.NoError(t, s.Start())
	err = s.ConfigureDocker(DockerConfig{Enabled: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, gonferrors.ErrSessionState)
}

func TestSetExecutor(t *testing.T) {
	rt := newTestRuntime(t)
	script := writeScript(t, `workflow(function () {});`)

	s, err := rt.NewSession()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(script))
	require.NoError(t, s.SetExecutor("local"))

	config, err := rt.api.sessionConfig(s.obj)
	require.NoError(t, err)
	assert.Equal(t, "local", config.Get("executor").String())

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.SetExecutor("slurm"), gonferrors.ErrSessionState)
	require.NoError(t, s.SetExecutor("")) // empty is a no-op, any state
}

func TestRunFailureLeavesSessionClosable(t *testing.T) {
	rt := newTestRuntime(t)
	script := writeScript(t, `
workflow(function () {
	fail('boom');
});
`)

	s, err := rt.NewSession()
	require.NoError(t, err)
	require.NoError(t, s.Init(script))
	require.NoError(t, s.Start())
	loader, err := s.NewLoader()
	require.NoError(t, err)
	require.NoError(t, loader.Parse(script))

	err = s.Run(loader)
	require.Error(t, err)
	assert.True(t, gonferrors.IsExecution(err))
	assert.Contains(t, err.Error(), "workflow execution failed")
	assert.Contains(t, err.Error(), "boom")

	s.Close()

	// Teardown released the VM: the next session is usable.
	next, err := rt.NewSession()
	require.NoError(t, err)
	next.Close()
}

func TestLoaderParseFailure(t *testing.T) {
	rt := newTestRuntime(t)
	script := writeScript(t, `workflow(function ( {);`)

	s, err := rt.NewSession()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(script))
	require.NoError(t, s.Start())

	loader, err := s.NewLoader()
	require.NoError(t, err)
	err = loader.Parse(script)
	require.Error(t, err)
	assert.True(t, gonferrors.IsScriptLoad(err))
	assert.Contains(t, err.Error(), script)
}
