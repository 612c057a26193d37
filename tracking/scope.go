package tracking

import (
	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// Scope is the granularity at which a measurement is reported.
type Scope string

const (
	ScopeBatch      Scope = "batch"
	ScopeLoader     Scope = "loader"
	ScopeEpoch      Scope = "epoch"
	ScopeExperiment Scope = "experiment"
)

// ParseScope converts a textual scope. The empty string means experiment.
func ParseScope(s string) (Scope, error) {
	scope, ok := Scope(s).normalize()
	if !ok {
		return "", errors.NewScopeError("ParseScope", s)
	}
	return scope, nil
}

// Valid reports whether s is one of the four scopes or empty.
func (s Scope) Valid() bool {
	_, ok := s.normalize()
	return ok
}

func (s Scope) String() string {
	return string(s)
}

func (s Scope) normalize() (Scope, bool) {
	switch s {
	case "":
		return ScopeExperiment, true
	case ScopeBatch, ScopeLoader, ScopeEpoch, ScopeExperiment:
		return s, true
	default:
		return s, false
	}
}

// RunCoordinates locate a call within the run. Only the fields relevant to
// the active Scope are read.
type RunCoordinates struct {
	EpochStep  int
	LoaderKey  string
	BatchStep  int
	SampleStep int
}
