// Package result builds the immutable outcome snapshot of a workflow run.
// Everything in a Result is plain Go data captured while the session was
// still alive; nothing here touches the engine VM after Build returns.
package result

import (
	"os"
	"path/filepath"

	"github.com/mathysgrapotte/gonf/pkg/engine"
	"github.com/mathysgrapotte/gonf/pkg/events"
)

// WorkflowOutput is one workflow output emission, values deep-converted.
type WorkflowOutput struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
	Index interface{} `json:"index"`
}

// PublishedFile is one file publish emission, values deep-converted.
type PublishedFile struct {
	Target interface{} `json:"target"`
	Source interface{} `json:"source"`
	Labels interface{} `json:"labels"`
}

// Report is the execution statistics snapshot.
type Report struct {
	Completed int    `json:"completed_tasks"`
	Failed    int    `json:"failed_tasks"`
	WorkDir   string `json:"work_dir"`
}

// Result is the outcome of one run. It stays valid after the session that
// produced it is destroyed.
type Result struct {
	report          Report
	workflowOutputs []WorkflowOutput
	publishedFiles  []PublishedFile
	taskWorkDirs    []string
}

// Build snapshots everything a caller may want from a finished run: the
// session statistics, the work directory, and every collected event with its
// foreign values converted to plain Go data. Build must run before the
// session is destroyed; the returned Result never needs the session again.
func Build(session *engine.Session, collector *events.Collector) (*Result, error) {
	completed, failed, err := session.Stats()
	if err != nil {
		return nil, err
	}
	workDir, err := session.WorkDir()
	if err != nil {
		return nil, err
	}

	res := &Result{
		report: Report{
			Completed: completed,
			Failed:    failed,
			WorkDir:   workDir,
		},
		taskWorkDirs: collector.TaskWorkDirs(),
	}

	for _, ev := range collector.WorkflowEvents() {
		res.workflowOutputs = append(res.workflowOutputs, WorkflowOutput{
			Name:  ev.Name,
			Value: ev.Value.Plain(),
			Index: ev.Index.Plain(),
		})
	}
	for _, ev := range collector.FileEvents() {
		res.publishedFiles = append(res.publishedFiles, PublishedFile{
			Target: ev.Target.Plain(),
			Source: ev.Source.Plain(),
			Labels: ev.Labels.Plain(),
		})
	}
	return res, nil
}

// Report returns the execution statistics snapshot.
func (r *Result) Report() Report {
	return r.report
}

// WorkflowOutputs returns the collected workflow output emissions.
func (r *Result) WorkflowOutputs() []WorkflowOutput {
	out := make([]WorkflowOutput, len(r.workflowOutputs))
	copy(out, r.workflowOutputs)
	return out
}

// PublishedFiles returns the collected file publish emissions.
func (r *Result) PublishedFiles() []PublishedFile {
	out := make([]PublishedFile, len(r.publishedFiles))
	copy(out, r.publishedFiles)
	return out
}

// TaskWorkDirs returns the work directories of completed and cached tasks.
func (r *Result) TaskWorkDirs() []string {
	out := make([]string, len(r.taskWorkDirs))
	copy(out, r.taskWorkDirs)
	return out
}

// OutputFiles resolves the run's output paths. First choice is the event
// stream: every path mentioned by a workflow output's value or index, or a
// file publish target, deduplicated in first-seen order. When the events
// carried no paths at all, fall back to scanning the recorded task work
// directories for top-level non-hidden regular files.
func (r *Result) OutputFiles() []string {
	seen := make(map[string]bool)
	var paths []string

	for _, ev := range r.workflowOutputs {
		appendUnique(&paths, seen, flattenPaths(ev.Value))
		appendUnique(&paths, seen, flattenPaths(ev.Index))
	}
	for _, ev := range r.publishedFiles {
		appendUnique(&paths, seen, flattenPaths(ev.Target))
	}
	if len(paths) > 0 {
		return paths
	}

	for _, workdir := range r.taskWorkDirs {
		appendUnique(&paths, seen, visibleFiles(workdir))
	}
	return paths
}

// Stdout returns the captured standard output of the run: the content of the
// first .command.out file found under the task work directories. Returns ""
// when no task wrote one.
func (r *Result) Stdout() string {
	for _, workdir := range r.taskWorkDirs {
		data, err := os.ReadFile(filepath.Join(workdir, ".command.out"))
		if err == nil {
			return string(data)
		}
	}
	return ""
}

func appendUnique(paths *[]string, seen map[string]bool, values []string) {
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		*paths = append(*paths, v)
	}
}

func visibleFiles(workdir string) []string {
	entries, err := os.ReadDir(workdir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(workdir, entry.Name()))
		if err != nil {
			continue
		}
		files = append(files, abs)
	}
	return files
}
