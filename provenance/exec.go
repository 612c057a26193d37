package provenance

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// DefaultCommandTimeout bounds each external command.
const DefaultCommandTimeout = 5 * time.Second

// pipeWaitDelay bounds how long Run waits for output pipes after the
// command was killed, in case a descendant escaped the process group.
const pipeWaitDelay = 250 * time.Millisecond

// CommandRunner runs an external command and returns its trimmed stdout.
// A non-zero exit, a missing executable and a timeout are all errors.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec. Stderr is discarded. On timeout
// the whole process group of the command is killed.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stderr = io.Discard
	cmd.WaitDelay = pipeWaitDelay
	killProcessGroup(cmd)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrapf(ctx.Err(), "%s %s", name, strings.Join(args, " "))
		}
		return "", errors.Wrapf(err, "%s %s", name, strings.Join(args, " "))
	}
	return strings.TrimSpace(string(out)), nil
}
