// Package experiment is the boundary between runtrack and user training code.
//
// A run configuration names its runner under runner._target_. The runner is
// looked up in a Registry populated by the experiment, which is itself found
// by the basename of the experiment directory in a Catalog.
package experiment

import (
	"context"
	"sort"
	"sync"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// TargetKey names the runner inside the runner section of a config.
const TargetKey = "_target_"

// RunnerSection is the top-level config key holding the runner.
const RunnerSection = "runner"

// Env is what a runner receives for one run.
type Env struct {
	Router *tracking.Router
	Logdir string
	Logger log.Logger
	// Config is the full resolved run configuration.
	Config map[string]any
}

// Runner executes a training run.
type Runner interface {
	Run(ctx context.Context, env Env) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, env Env) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, env Env) error {
	return f(ctx, env)
}

// Factory builds a runner from the runner section of a config, with the
// target key removed.
type Factory func(params map[string]any) (Runner, error)

// Registry maps runner targets to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.NewValidationError("runner", "name must not be empty", name)
	}
	if factory == nil {
		return errors.NewValidationError("runner", "factory is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return errors.NewValidationError("runner", "already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRunner builds the runner named by config.runner._target_. config is
// not modified; the factory receives a copy of the runner section without
// the target key.
func (r *Registry) NewRunner(config map[string]any) (Runner, error) {
	cfg, _ := cloneValue(config).(map[string]any)
	section, ok := cfg[RunnerSection].(map[string]any)
	if !ok {
		return nil, errors.NewValidationError(RunnerSection, "config has no runner section", nil)
	}

	target, _ := section[TargetKey].(string)
	delete(section, TargetKey)
	if target == "" {
		return nil, errors.NewValidationError(RunnerSection+"."+TargetKey, "runner target is missing", "")
	}

	factory, ok := r.Get(target)
	if !ok {
		return nil, errors.NewValidationError(RunnerSection+"."+TargetKey, "unknown runner", target)
	}
	runner, err := factory(section)
	if err != nil {
		return nil, errors.Wrapf(err, "build runner %s", target)
	}
	return runner, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
