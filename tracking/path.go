package tracking

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// Categories used by BuildPath for non-metric writes.
const (
	CategoryArtifacts = "_artifacts"
	CategoryImages    = "_images"
)

// Path is an immutable sequence of segments joined with "/".
type Path struct {
	segments []string
}

// NewPath returns a Path made of the given segments.
func NewPath(segments ...string) Path {
	s := make([]string, len(segments))
	copy(s, segments)
	return Path{segments: s}
}

// Segments returns a copy of the segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Child returns a new Path with segments appended.
func (p Path) Child(segments ...string) Path {
	s := make([]string, 0, len(p.segments)+len(segments))
	s = append(s, p.segments...)
	s = append(s, segments...)
	return Path{segments: s}
}

func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

func epochSegment(step int) string {
	return fmt.Sprintf("epoch-%04d", step)
}

func loaderSegment(key string) string {
	return "loader-" + key
}

func batchSegment(step int) string {
	return fmt.Sprintf("batch-%04d", step)
}

// BuildPath maps a scoped write to its Path. Steps are zero-padded to four
// digits so that string order matches chronological order:
//
//	experiment: base/category/tag
//	epoch:      base/category/epoch-NNNN/tag
//	loader:     base/category/epoch-NNNN/loader-KEY/tag
//	batch:      base/category/epoch-NNNN/loader-KEY/batch-NNNN/tag
func BuildPath(base, category string, scope Scope, coords RunCoordinates, tag string) (Path, error) {
	scope, ok := scope.normalize()
	if !ok {
		return Path{}, errors.NewScopeError("BuildPath", string(scope))
	}

	p := NewPath(base, category)
	switch scope {
	case ScopeEpoch:
		p = p.Child(epochSegment(coords.EpochStep))
	case ScopeLoader:
		p = p.Child(epochSegment(coords.EpochStep), loaderSegment(coords.LoaderKey))
	case ScopeBatch:
		p = p.Child(epochSegment(coords.EpochStep), loaderSegment(coords.LoaderKey), batchSegment(coords.BatchStep))
	}
	return p.Child(tag), nil
}

// MetricPath returns the terser namespace used for metric series:
//
//	batch, loader: base/LOADER/scope
//	epoch:         base/epoch
//	experiment:    base
func MetricPath(base string, scope Scope, coords RunCoordinates) (Path, error) {
	scope, ok := scope.normalize()
	if !ok {
		return Path{}, errors.NewScopeError("MetricPath", string(scope))
	}

	switch scope {
	case ScopeBatch, ScopeLoader:
		return NewPath(base, coords.LoaderKey, string(scope)), nil
	case ScopeEpoch:
		return NewPath(base, string(scope)), nil
	default:
		return NewPath(base), nil
	}
}
