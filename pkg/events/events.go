// Package events collects workflow output events, file publish events, and
// task work directories during a run.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mathysgrapotte/gonf/pkg/engine"
)

// WorkflowEvent is one workflow output emission. Value and Index are still
// foreign engine values; they must be converted before the session that
// produced them is destroyed.
type WorkflowEvent struct {
	Name  string
	Value engine.Value
	Index engine.Value
}

// FileEvent is one file publish emission, fields still foreign.
type FileEvent struct {
	Target engine.Value
	Source engine.Value
	Labels engine.Value
}

// Collector accumulates execution events for one run. Appends are mutex
// guarded; the engine dispatches hooks from its own execution context and
// nothing here assumes a single goroutine.
type Collector struct {
	mu             sync.Mutex
	workflowEvents []WorkflowEvent
	fileEvents     []FileEvent
	taskWorkDirs   []string
	logger         *zap.Logger
}

// NewCollector returns an empty collector.
func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger}
}

// Hooks returns a hook map covering every name the engine requires. Names
// the collector has no interest in get a no-op so registration never fails
// on coverage.
func (c *Collector) Hooks(required []string) map[string]engine.HookFunc {
	hooks := make(map[string]engine.HookFunc, len(required))
	for _, name := range required {
		hooks[name] = func(ev *engine.Event) {}
	}
	hooks["onTaskComplete"] = func(ev *engine.Event) { c.recordTaskWorkDir(ev, "onTaskComplete") }
	hooks["onTaskCached"] = func(ev *engine.Event) { c.recordTaskWorkDir(ev, "onTaskCached") }
	hooks["onWorkflowOutput"] = c.onWorkflowOutput
	hooks["onFilePublish"] = c.onFilePublish
	return hooks
}

// WorkflowEvents returns a copy of the collected workflow output events.
func (c *Collector) WorkflowEvents() []WorkflowEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WorkflowEvent, len(c.workflowEvents))
	copy(out, c.workflowEvents)
	return out
}

// FileEvents returns a copy of the collected file publish events.
func (c *Collector) FileEvents() []FileEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FileEvent, len(c.fileEvents))
	copy(out, c.fileEvents)
	return out
}

// TaskWorkDirs returns a copy of the recorded task work directories, in
// completion order.
func (c *Collector) TaskWorkDirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.taskWorkDirs))
	copy(out, c.taskWorkDirs)
	return out
}

func (c *Collector) onWorkflowOutput(ev *engine.Event) {
	if ev == nil {
		return
	}
	event := WorkflowEvent{
		Name:  ev.Text("getName"),
		Value: ev.Value("getValue"),
		Index: ev.Value("getIndex"),
	}
	c.mu.Lock()
	c.workflowEvents = append(c.workflowEvents, event)
	c.mu.Unlock()
}

func (c *Collector) onFilePublish(ev *engine.Event) {
	if ev == nil {
		return
	}
	event := FileEvent{
		Target: ev.Value("getTarget"),
		Source: ev.Value("getSource"),
		Labels: ev.Value("getLabels"),
	}
	c.mu.Lock()
	c.fileEvents = append(c.fileEvents, event)
	c.mu.Unlock()
}

func (c *Collector) recordTaskWorkDir(ev *engine.Event, hook string) {
	if ev == nil {
		return
	}
	workdir, err := ev.TaskWorkDir()
	if err != nil {
		c.logger.Debug("task workdir unavailable", zap.String("hook", hook), zap.Error(err))
		return
	}
	c.logger.Debug("task completed", zap.String("hook", hook), zap.String("workDir", workdir))
	c.mu.Lock()
	c.taskWorkDirs = append(c.taskWorkDirs, workdir)
	c.mu.Unlock()
}
