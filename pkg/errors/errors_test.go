package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	base := stderrors.New("boom")
	err := NewError(CodeExecution, "workflow execution failed", base)

	assert.Contains(t, err.Error(), "EXECUTION")
	assert.Contains(t, err.Error(), "workflow execution failed")
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, stderrors.Is(err, base))
}

func TestErrorWithoutCause(t *testing.T) {
	err := NewError(CodeSchemaMismatch, "bad inputs", nil)
	assert.Contains(t, err.Error(), "SCHEMA_MISMATCH")
	assert.Nil(t, stderrors.Unwrap(err))
}

func TestCodeHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		matcher func(error) bool
		want    bool
	}{
		{"artifact not found", NewError(CodeArtifactNotFound, "missing", ErrBundleNotFound), IsArtifactNotFound, true},
		{"script load", NewError(CodeScriptLoad, "parse", nil), IsScriptLoad, true},
		{"schema mismatch", NewError(CodeSchemaMismatch, "count", nil), IsSchemaMismatch, true},
		{"injection", NewError(CodeInjection, "convert", nil), IsInjection, true},
		{"execution", NewError(CodeExecution, "run", nil), IsExecution, true},
		{"wrong code", NewError(CodeExecution, "run", nil), IsSchemaMismatch, false},
		{"plain error", stderrors.New("nope"), IsExecution, false},
		{"nil", nil, IsExecution, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher(tt.err))
		})
	}
}

func TestCodeMatchingThroughWrapping(t *testing.T) {
	inner := NewError(CodeScriptLoad, "parsing main.nf", stderrors.New("syntax error"))
	wrapped := fmt.Errorf("running module: %w", inner)

	require.True(t, IsScriptLoad(wrapped))
	assert.False(t, IsExecution(wrapped))
}

func TestSentinelMatching(t *testing.T) {
	err := NewError(CodeRuntimeRestart, "engine already started", ErrAlreadyStarted)
	assert.True(t, stderrors.Is(err, ErrAlreadyStarted))
}
