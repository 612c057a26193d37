package tracking

import (
	"context"
	"image"
	"strings"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
)

const hparamsKey = "hparams"

// Artifact is the payload of LogArtifact. Exactly one field must be set.
type Artifact struct {
	// Object is an in-memory value; []byte is uploaded as is, anything else
	// is gob-encoded.
	Object any
	// Path is a file to upload.
	Path string
}

// Router maps scoped metrics, images and artifacts onto sink paths.
// Calls are expected to be serialized by the caller.
type Router struct {
	sink    Sink
	cfg     Config
	logger  log.Logger
	version string
}

// NewRouter builds a router over sink. When the root sink supports version
// tags, the integration version is written once; failure to do so is ignored.
func NewRouter(ctx context.Context, sink Sink, cfg Config, opts ...Option) (*Router, error) {
	if sink == nil {
		return nil, errors.NewValidationError("sink", "sink is required", nil)
	}
	cfg.BaseNamespace = strings.Trim(cfg.BaseNamespace, "/")
	if cfg.BaseNamespace == "" {
		return nil, errors.NewValidationError("base_namespace", "must not be empty", cfg.BaseNamespace)
	}

	r := &Router{
		sink:    sink,
		cfg:     cfg,
		version: Version,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("tracking.router")
	}

	if vt, ok := RootOf(sink).(VersionTagger); ok {
		tagged := vt.TrySetVersionTag(ctx, VersionTagKey, r.version)
		r.logger.Debug("version tag", log.PathKey, VersionTagKey, "stored", tagged)
	}
	return r, nil
}

// Config returns the router configuration.
func (r *Router) Config() Config {
	return r.cfg
}

// Sink returns the sink the router writes to.
func (r *Router) Sink() Sink {
	return r.sink
}

func (r *Router) enabled(scope Scope) bool {
	switch scope {
	case ScopeBatch:
		return r.cfg.LogBatchMetrics
	case ScopeLoader, ScopeEpoch:
		return r.cfg.LogEpochMetrics
	default:
		return true
	}
}

// LogMetrics appends every metric of batch to the series of its scope.
//
//	batch:      base/LOADER/batch/NAME   step = SampleStep
//	loader:     base/LOADER/loader/NAME  step = EpochStep, conflicts resolved
//	epoch:      base/epoch/NAME          step = EpochStep, EpochKey group, conflicts resolved
//	experiment: base/NAME                step = 0
//
// Batch metrics are gated by LogBatchMetrics, loader and epoch metrics by
// LogEpochMetrics. Non-finite values are skipped with a warning.
func (r *Router) LogMetrics(ctx context.Context, batch *MetricBatch, scope Scope, coords RunCoordinates) error {
	scope, ok := scope.normalize()
	if !ok {
		return errors.NewScopeError(log.OperationLogMetrics, string(scope))
	}
	if !r.enabled(scope) {
		return nil
	}

	var step int64
	metrics := batch
	switch scope {
	case ScopeBatch:
		step = int64(coords.SampleStep)
	case ScopeLoader:
		step = int64(coords.EpochStep)
		metrics = ResolveConflicts(batch)
	case ScopeEpoch:
		step = int64(coords.EpochStep)
		metrics = ResolveConflicts(batch.Group(EpochKey))
	}
	if metrics.Len() == 0 {
		return nil
	}

	base, err := MetricPath(r.cfg.BaseNamespace, scope, coords)
	if err != nil {
		return err
	}
	prefix := base.String()

	var firstErr error
	metrics.Each(func(name string, value float64) {
		if firstErr != nil {
			return
		}
		if err := errors.CheckScalar(log.OperationLogMetrics, value, step); err != nil {
			errors.Warn(err)
			return
		}
		path := prefix + "/" + name
		if err := r.sink.AppendValue(ctx, path, value, step); err != nil {
			firstErr = errors.Wrapf(err, "append %s", path)
		}
	})
	return firstErr
}

// LogImage appends a PNG rendering of img under _images. Batch and loader
// scopes share the loader-level path.
func (r *Router) LogImage(ctx context.Context, tag string, img image.Image, scope Scope, coords RunCoordinates) error {
	scope, ok := scope.normalize()
	if !ok {
		return errors.NewScopeError(log.OperationLogImage, string(scope))
	}
	if scope == ScopeBatch {
		scope = ScopeLoader
	}

	path, err := BuildPath(r.cfg.BaseNamespace, CategoryImages, scope, coords, tag)
	if err != nil {
		return err
	}
	blob, err := EncodeImage(img)
	if err != nil {
		return err
	}
	return r.sink.AppendBlob(ctx, path.String(), blob, imageStep(scope, coords))
}

func imageStep(scope Scope, coords RunCoordinates) int64 {
	switch scope {
	case ScopeLoader, ScopeEpoch:
		return int64(coords.EpochStep)
	default:
		return 0
	}
}

// LogArtifact uploads an artifact under _artifacts. Exactly one of
// artifact.Object and artifact.Path must be set.
func (r *Router) LogArtifact(ctx context.Context, tag string, coords RunCoordinates, scope Scope, artifact Artifact) error {
	hasObject := artifact.Object != nil
	hasPath := artifact.Path != ""
	switch {
	case hasObject && hasPath:
		return errors.NewValidationError("artifact", "artifact and path_to_artifact are mutually exclusive", artifact.Path)
	case !hasObject && !hasPath:
		return errors.NewValidationError("artifact", "one of artifact or path_to_artifact is required", nil)
	}

	scope, ok := scope.normalize()
	if !ok {
		return errors.NewScopeError(log.OperationLogArtifact, string(scope))
	}
	path, err := BuildPath(r.cfg.BaseNamespace, CategoryArtifacts, scope, coords, tag)
	if err != nil {
		return err
	}

	blob := Blob{FilePath: artifact.Path}
	if hasObject {
		if blob, err = EncodeObject(artifact.Object); err != nil {
			return err
		}
	}
	return r.sink.Upload(ctx, path.String(), blob)
}

// LogHparams stores hparams as one structured value at base/hparams.
func (r *Router) LogHparams(ctx context.Context, hparams map[string]any) error {
	path := NewPath(r.cfg.BaseNamespace, hparamsKey).String()
	return r.sink.SetValue(ctx, path, Stringify(hparams))
}

// Flush forwards to the sink.
func (r *Router) Flush(ctx context.Context) error {
	return r.sink.Flush(ctx)
}

// Close drains the root sink and waits for durability of prior writes.
func (r *Router) Close(ctx context.Context) error {
	return RootOf(r.sink).Close(ctx)
}
