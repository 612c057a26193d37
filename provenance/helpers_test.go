package provenance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
)

// fakeRunner answers commands from a table keyed by "name arg...".
type fakeRunner struct {
	outputs map[string]string
	panics  map[string]bool
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) (string, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmd)
	if f.panics[cmd] {
		panic("runner exploded: " + cmd)
	}
	if out, ok := f.outputs[cmd]; ok {
		return out, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

func (f *fakeRunner) called(cmd string) bool {
	for _, c := range f.calls {
		if c == cmd {
			return true
		}
	}
	return false
}

var gitOutputs = map[string]string{
	"git rev-parse --abbrev-ref HEAD": "main",
	"git rev-parse HEAD":              "0123abcd",
	"git rev-parse origin/main":       "4567ef01",
}

func captureWarnings(t *testing.T) func() []error {
	t.Helper()
	var (
		mu  sync.Mutex
		got []error
	)
	prev := log.GetLogger()
	errors.SetZerologWarnFunc(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, w)
	})
	t.Cleanup(func() {
		errors.SetZerologWarnFunc(nil)
		log.SetLogger(prev)
	})
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), got...)
	}
}

func quietLogger() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}
