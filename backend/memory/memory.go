// Package memory provides an in-process tracking sink that records every
// write. It backs dry runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// Op names a recorded write.
type Op string

const (
	OpAppendValue Op = "append_value"
	OpSetValue    Op = "set_value"
	OpUpload      Op = "upload"
	OpAppendBlob  Op = "append_blob"
	OpWriteText   Op = "write_text"
)

// Write is one recorded call.
type Write struct {
	Op   Op
	Path string
	Step int64
}

// Text is one free-text attachment.
type Text struct {
	Tag  string
	Text string
	Step int64
}

// StoredBlob is a blob with the step it was appended at.
type StoredBlob struct {
	tracking.Blob
	Step int64
}

// Sink records writes in memory. It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	series  map[string][]tracking.Point
	values  map[string]any
	blobs   map[string][]StoredBlob
	texts   []Text
	tags    map[string]string
	writes  []Write
	flushes int
	closed  bool

	// RejectTags makes TrySetVersionTag report failure.
	RejectTags bool
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{
		series: make(map[string][]tracking.Point),
		values: make(map[string]any),
		blobs:  make(map[string][]StoredBlob),
		tags:   make(map[string]string),
	}
}

func (s *Sink) record(op Op, path string, step int64) error {
	if s.closed {
		return errors.Wrapf(errors.ErrClosed, "memory: %s %s", op, path)
	}
	s.writes = append(s.writes, Write{Op: op, Path: path, Step: step})
	return nil
}

func (s *Sink) AppendValue(_ context.Context, path string, value float64, step int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpAppendValue, path, step); err != nil {
		return err
	}
	s.series[path] = append(s.series[path], tracking.Point{Step: step, Value: value})
	return nil
}

func (s *Sink) SetValue(_ context.Context, path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpSetValue, path, 0); err != nil {
		return err
	}
	s.values[path] = value
	return nil
}

func (s *Sink) Upload(_ context.Context, path string, blob tracking.Blob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpUpload, path, 0); err != nil {
		return err
	}
	s.blobs[path] = []StoredBlob{{Blob: blob}}
	return nil
}

func (s *Sink) AppendBlob(_ context.Context, path string, blob tracking.Blob, step int64) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpAppendBlob, path, step); err != nil {
		return err
	}
	s.blobs[path] = append(s.blobs[path], StoredBlob{Blob: blob, Step: step})
	return nil
}

func (s *Sink) WriteText(_ context.Context, tag, text string, step int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpWriteText, tag, step); err != nil {
		return err
	}
	s.texts = append(s.texts, Text{Tag: tag, Text: text, Step: step})
	return nil
}

func (s *Sink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// TrySetVersionTag stores the tag unless RejectTags is set.
func (s *Sink) TrySetVersionTag(_ context.Context, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RejectTags || s.closed {
		return false
	}
	s.tags[key] = value
	return true
}

// Series returns the points appended at path.
func (s *Sink) Series(path string) []tracking.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tracking.Point(nil), s.series[path]...)
}

// SeriesPaths returns every path with at least one point, sorted.
func (s *Sink) SeriesPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.series))
	for p := range s.series {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Value returns the value set at path.
func (s *Sink) Value(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[path]
	return v, ok
}

// Blobs returns the blobs stored at path.
func (s *Sink) Blobs(path string) []StoredBlob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredBlob(nil), s.blobs[path]...)
}

// Texts returns all text attachments in write order.
func (s *Sink) Texts() []Text {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Text(nil), s.texts...)
}

// Tag returns the version tag stored under key.
func (s *Sink) Tag(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tags[key]
	return v, ok
}

// Writes returns every recorded call in order.
func (s *Sink) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Flushes returns how many times Flush was called.
func (s *Sink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Closed reports whether Close was called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ tracking.Sink          = (*Sink)(nil)
	_ tracking.VersionTagger = (*Sink)(nil)
)
