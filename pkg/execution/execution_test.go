package execution_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathysgrapotte/gonf/internal/enginetest"
	"github.com/mathysgrapotte/gonf/pkg/engine"
	gonferrors "github.com/mathysgrapotte/gonf/pkg/errors"
	"github.com/mathysgrapotte/gonf/pkg/execution"
	"github.com/mathysgrapotte/gonf/pkg/inputs"
)

func TestExecuteEndToEnd(t *testing.T) {
	workdir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workdir, ".command.out"), []byte("trimmed 10 reads\n"), 0o644))

	script := enginetest.WriteScript(t, fmt.Sprintf(`
process({ name: 'TRIM', inputs: [tuple(val('meta'), path('reads'))] });
workflow(function () {
	task({ workdir: %q });
	output('trimmed', [file(params.reads + '.trimmed')], null);
});
`, workdir))

	res, err := execution.Execute(context.Background(), execution.Request{
		ScriptPath: script,
		BundlePath: enginetest.BundlePath(t),
		Executor:   "local",
		Params:     map[string]interface{}{"threads": 4},
		Inputs: []inputs.Group{{
			"meta":  map[string]interface{}{"id": "s1"},
			"reads": "/data/s1.fq",
		}},
	})
	require.NoError(t, err)

	report := res.Report()
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 0, report.Failed)
	assert.NotEmpty(t, report.WorkDir)

	assert.Equal(t, []string{"/data/s1.fq.trimmed"}, res.OutputFiles())
	assert.Equal(t, "trimmed 10 reads\n", res.Stdout())

	outputs := res.WorkflowOutputs()
	require.Len(t, outputs, 1)
	assert.Equal(t, "trimmed", outputs[0].Name)
}

func TestExecuteValidationFailure(t *testing.T) {
	script := enginetest.WriteScript(t, `
process({ name: 'TRIM', inputs: [path('reads'), path('index')] });
workflow(function () {
	task({});
});
`)

	_, err := execution.Execute(context.Background(), execution.Request{
		ScriptPath: script,
		BundlePath: enginetest.BundlePath(t),
		Inputs:     []inputs.Group{{"reads": "/r.fq"}},
	})
	require.Error(t, err)
	assert.True(t, gonferrors.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "Expected 2 input group(s), but got 1")
}

func TestExecuteFailureTearsDownSession(t *testing.T) {
	failing := enginetest.WriteScript(t, `
workflow(function () {
	fail('task exploded');
});
`)

	_, err := execution.Execute(context.Background(), execution.Request{
		ScriptPath: failing,
		BundlePath: enginetest.BundlePath(t),
	})
	require.Error(t, err)
	assert.True(t, gonferrors.IsExecution(err))
	assert.Contains(t, err.Error(), "task exploded")

	// The failed run released the engine: a fresh run succeeds. This only
	// works when teardown ran on the failure path.
	ok := enginetest.WriteScript(t, `
workflow(function () {
	task({});
});
`)
	res, err := execution.Execute(context.Background(), execution.Request{
		ScriptPath: ok,
		BundlePath: enginetest.BundlePath(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report().Completed)
}

func TestExecuteWorkdirFallback(t *testing.T) {
	workdir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "out.bam"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, ".hidden"), []byte("x"), 0o644))

	script := enginetest.WriteScript(t, fmt.Sprintf(`
workflow(function () {
	task({ workdir: %q });
});
`, workdir))

	res, err := execution.Execute(context.Background(), execution.Request{
		ScriptPath: script,
		BundlePath: enginetest.BundlePath(t),
	})
	require.NoError(t, err)

	files := res.OutputFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "out.bam", filepath.Base(files[0]))
}

func TestExecuteDockerAndParseFailure(t *testing.T) {
	bad := enginetest.WriteScript(t, `workflow(function ( {);`)

	_, err := execution.Execute(context.Background(), execution.Request{
		ScriptPath: bad,
		BundlePath: enginetest.BundlePath(t),
		Docker:     &engine.DockerConfig{Enabled: true, Registry: "quay.io"},
	})
	require.Error(t, err)
	assert.True(t, gonferrors.IsScriptLoad(err))
}
