package experiment

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// Setup registers an experiment's runners.
type Setup func(r *Registry) error

// Catalog maps experiment directory basenames to their setup.
type Catalog struct {
	mu     sync.RWMutex
	setups map[string]Setup
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{setups: make(map[string]Setup)}
}

// Register adds an experiment. It panics on duplicates, like the
// registration done from init functions.
func (c *Catalog) Register(name string, setup Setup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if setup == nil {
		panic("experiment: Register setup is nil")
	}
	if _, dup := c.setups[name]; dup {
		panic("experiment: Register called twice for " + name)
	}
	c.setups[name] = setup
}

// Names returns the registered experiment names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.setups))
	for name := range c.setups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load returns the runner registry of the experiment in expdir. The
// experiment is found by the directory basename; a trailing slash is
// ignored.
func (c *Catalog) Load(expdir string) (*Registry, error) {
	name := Name(expdir)
	c.mu.RLock()
	setup, ok := c.setups[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("expdir", "no experiment registered for directory", name)
	}

	reg := NewRegistry()
	if err := setup(reg); err != nil {
		return nil, errors.Wrapf(err, "setup experiment %s", name)
	}
	return reg, nil
}

// Name returns the experiment name of expdir.
func Name(expdir string) string {
	return filepath.Base(strings.TrimSuffix(expdir, "/"))
}

// Default is the catalog used by RegisterExperiment and LoadExperiment.
var Default = NewCatalog()

// RegisterExperiment adds an experiment to the default catalog.
func RegisterExperiment(name string, setup Setup) {
	Default.Register(name, setup)
}

// LoadExperiment loads an experiment from the default catalog.
func LoadExperiment(expdir string) (*Registry, error) {
	return Default.Load(expdir)
}
