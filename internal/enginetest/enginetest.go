// Package enginetest provides the stub engine bundle used as the foreign
// runtime in tests, and helpers to boot it.
//
// The engine bridge is a process-wide singleton, so every test in a binary
// shares one runtime booted from one bundle file. Sessions remain isolated:
// the bridge hands them out one at a time.
package enginetest

import (
	_ "embed"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/mathysgrapotte/gonf/pkg/engine"
)

//go:embed testdata/engine.js
var bundleSource []byte

var (
	once       sync.Once
	bundlePath string
	writeErr   error
)

// BundlePath materializes the stub bundle on disk once per test binary and
// returns its path.
func BundlePath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		dir, err := os.MkdirTemp("", "gonf-engine-")
		if err != nil {
			writeErr = err
			return
		}
		bundlePath = filepath.Join(dir, "nextflow-test-one.js")
		writeErr = os.WriteFile(bundlePath, bundleSource, 0o644)
	})
	if writeErr != nil {
		t.Fatalf("writing stub engine bundle: %v", writeErr)
	}
	return bundlePath
}

// Start boots the shared runtime from the stub bundle.
func Start(t *testing.T) *engine.Runtime {
	t.Helper()
	rt, err := engine.EnsureStarted(BundlePath(t), zap.NewNop())
	if err != nil {
		t.Fatalf("starting engine: %v", err)
	}
	return rt
}

// WriteScript writes pipeline source to a fresh temp file and returns its
// path.
func WriteScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.nf")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}
