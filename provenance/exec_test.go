//go:build unix

package provenance

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerTrimsOutput(t *testing.T) {
	requireShell(t)

	out, err := ExecRunner{}.Run(context.Background(), t.TempDir(), "sh", "-c", "printf '  numpy==1.26.4\\n\\n'")

	require.NoError(t, err)
	assert.Equal(t, "numpy==1.26.4", out)
}

func TestExecRunnerRunsInDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	out, err := ExecRunner{}.Run(context.Background(), dir, "sh", "-c", "pwd -P")

	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestExecRunnerTimeout(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name   string
		script string
	}{
		{"direct child", "exec sleep 3"},
		// sleep inherits stdout and outlives the shell
		{"grandchild holds stdout", "sleep 3; echo done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			_, err := ExecRunner{Timeout: 200 * time.Millisecond}.Run(context.Background(), "", "sh", "-c", tt.script)
			elapsed := time.Since(start)

			require.Error(t, err)
			assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
			assert.Less(t, elapsed, 2*time.Second)
		})
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	requireShell(t)

	_, err := ExecRunner{}.Run(context.Background(), "", "sh", "-c", "echo partial; exit 3")

	require.Error(t, err)
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "err = %v", err)
	assert.Equal(t, 3, exitErr.ExitCode())
	assert.Contains(t, err.Error(), "sh -c")
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "", "runtrack-no-such-binary", "list")

	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound), "err = %v", err)
}
