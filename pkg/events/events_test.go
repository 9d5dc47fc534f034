package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathysgrapotte/gonf/internal/enginetest"
	"github.com/mathysgrapotte/gonf/pkg/events"
)

func TestHooksCoverEveryRequiredName(t *testing.T) {
	required := []string{
		"onFlowCreate", "onFlowBegin", "onFlowComplete",
		"onProcessCreate", "onProcessTerminate",
		"onTaskPending", "onTaskSubmit", "onTaskStart",
		"onTaskComplete", "onTaskCached",
		"onFlowError", "onWorkflowOutput", "onFilePublish",
	}
	collector := events.NewCollector(nil)
	hooks := collector.Hooks(required)

	require.Len(t, hooks, len(required))
	for _, name := range required {
		assert.Contains(t, hooks, name)
		assert.NotNil(t, hooks[name])
	}

	// Hooks tolerate missing event payloads.
	for _, name := range required {
		hooks[name](nil)
	}
	assert.Empty(t, collector.WorkflowEvents())
	assert.Empty(t, collector.FileEvents())
	assert.Empty(t, collector.TaskWorkDirs())
}

func TestCollectorRecordsRunEvents(t *testing.T) {
	script := enginetest.WriteScript(t, `
process({ name: 'EMIT', inputs: [] });
workflow(function () {
	task({ workdir: '/work/aa/1' });
	task({ workdir: '/work/bb/2' });
	output('trimmed', [file('/out/r1.fq')], 0);
	publishFile(file('/results/r1.fq'), file('/out/r1.fq'), ['trim']);
});
`)

	rt := enginetest.Start(t)
	session, err := rt.NewSession()
	require.NoError(t, err)
	t.Cleanup(session.Close)
	require.NoError(t, session.Init(script))
	require.NoError(t, session.Start())
	loader, err := session.NewLoader()
	require.NoError(t, err)
	require.NoError(t, loader.Parse(script))

	collector := events.NewCollector(nil)
	require.NoError(t, session.RegisterObserver(collector.Hooks(rt.ObserverHooks())))
	require.NoError(t, session.Run(loader))

	workDirs := collector.TaskWorkDirs()
	assert.Equal(t, []string{"/work/aa/1", "/work/bb/2"}, workDirs)

	wfEvents := collector.WorkflowEvents()
	require.Len(t, wfEvents, 1)
	assert.Equal(t, "trimmed", wfEvents[0].Name)
	assert.Equal(t, []interface{}{"/out/r1.fq"}, wfEvents[0].Value.Plain())
	assert.Equal(t, int64(0), wfEvents[0].Index.Plain())

	fileEvents := collector.FileEvents()
	require.Len(t, fileEvents, 1)
	assert.Equal(t, "/results/r1.fq", fileEvents[0].Target.Plain())
	assert.Equal(t, "/out/r1.fq", fileEvents[0].Source.Plain())
	assert.Equal(t, []interface{}{"trim"}, fileEvents[0].Labels.Plain())
}

func TestSnapshotsAreCopies(t *testing.T) {
	collector := events.NewCollector(nil)
	hooks := collector.Hooks([]string{"onTaskComplete"})
	hooks["onTaskComplete"](nil)

	first := collector.TaskWorkDirs()
	first = append(first, "/mutated")
	assert.NotEqual(t, first, collector.TaskWorkDirs())
}
