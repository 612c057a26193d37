package tracking

import (
	"context"
	"os"
	"time"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// Point is one sample of an appended series.
type Point struct {
	Step  int64     `json:"step"`
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// Blob is an uploadable payload. Exactly one of Data and FilePath is set.
type Blob struct {
	Data        []byte
	FilePath    string
	ContentType string
}

// Validate checks that exactly one source is set.
func (b Blob) Validate() error {
	hasData := b.Data != nil
	hasPath := b.FilePath != ""
	switch {
	case hasData && hasPath:
		return errors.NewValidationError("blob", "data and file path are mutually exclusive", b.FilePath)
	case !hasData && !hasPath:
		return errors.NewValidationError("blob", "either data or file path is required", nil)
	}
	return nil
}

// Bytes returns the payload, reading FilePath when Data is unset.
func (b Blob) Bytes() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Data != nil {
		return b.Data, nil
	}
	data, err := os.ReadFile(b.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read blob %s", b.FilePath)
	}
	return data, nil
}

// TextSink receives free-text attachments at the root of a run.
type TextSink interface {
	WriteText(ctx context.Context, tag, text string, step int64) error
}

// Sink is the backend adapter addressed by hierarchical path strings.
// Repeated AppendValue or AppendBlob calls on one path accumulate a series;
// SetValue and Upload overwrite.
type Sink interface {
	TextSink

	AppendValue(ctx context.Context, path string, value float64, step int64) error
	SetValue(ctx context.Context, path string, value any) error
	Upload(ctx context.Context, path string, blob Blob) error
	AppendBlob(ctx context.Context, path string, blob Blob, step int64) error

	// Flush may return immediately when every write is already durable.
	Flush(ctx context.Context) error
	// Close drains pending writes and blocks until they are durable.
	Close(ctx context.Context) error
}

// VersionTagger is an optional Sink capability. TrySetVersionTag never
// fails the caller; it only reports whether the tag was stored.
type VersionTagger interface {
	TrySetVersionTag(ctx context.Context, key, value string) bool
}

// Rooted is implemented by sinks that are a view onto another sink.
type Rooted interface {
	Root() Sink
}

// RootOf follows Root until it reaches a sink that is not a view.
func RootOf(s Sink) Sink {
	for {
		r, ok := s.(Rooted)
		if !ok {
			return s
		}
		next := r.Root()
		if next == nil || next == s {
			return s
		}
		s = next
	}
}
