// Package remote is a tracking backend that writes series and text to
// InfluxDB and values and blobs to Google Cloud Storage.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"google.golang.org/api/option"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// Kind is the backend kind of the remote sink.
const Kind = "remote"

// DefaultMeasurement is used when the config leaves it empty.
const DefaultMeasurement = "runtrack"

func init() {
	backend.Register(Kind, func(ctx context.Context, cfg backend.Config) (tracking.Sink, error) {
		return Dial(ctx, cfg.Remote)
	})
}

// PointWriter writes points synchronously. api.WriteAPIBlocking satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// ObjectStore stores named objects.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
}

// Sink writes to a PointWriter and an optional ObjectStore.
type Sink struct {
	points      PointWriter
	objects     ObjectStore
	measurement string
	prefix      string
	runID       string
	seq         atomic.Uint64
	closed      atomic.Bool
	closers     []func()
	logger      log.Logger
	now         func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithObjectStore sets the store for values and blobs.
func WithObjectStore(store ObjectStore) Option {
	return func(s *Sink) {
		s.objects = store
	}
}

// WithMeasurement sets the influx measurement of series points.
func WithMeasurement(m string) Option {
	return func(s *Sink) {
		if m != "" {
			s.measurement = m
		}
	}
}

// WithPrefix sets the object name prefix. Objects land under
// <prefix>/<run id>/ so runs sharing a bucket do not collide.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithRunID sets the run tag. A random one is generated otherwise.
func WithRunID(id string) Option {
	return func(s *Sink) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithClock overrides the point timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func withCloser(fn func()) Option {
	return func(s *Sink) {
		s.closers = append(s.closers, fn)
	}
}

// New builds a Sink over already connected writers.
func New(points PointWriter, opts ...Option) *Sink {
	s := &Sink{
		points:      points,
		measurement: DefaultMeasurement,
		runID:       uuid.NewString(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("backend.remote")
	}
	return s
}

// Dial connects to InfluxDB and, when a bucket is configured, to GCS. It
// fails when the influx health check fails; there is no retry.
func Dial(ctx context.Context, cfg backend.RemoteConfig) (*Sink, error) {
	if cfg.InfluxURL == "" {
		return nil, errors.NewValidationError("remote.influx_url", "influx url is required", cfg.InfluxURL)
	}

	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, errors.NewBackendError(Kind, "influx health", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		status := "unknown"
		if health != nil {
			status = string(health.Status)
		}
		return nil, errors.NewBackendError(Kind, "influx health", errors.Newf("status %s", status))
	}

	opts := []Option{
		WithMeasurement(cfg.Measurement),
		WithPrefix(cfg.GCSPrefix),
		WithRunID(cfg.RunID),
		withCloser(client.Close),
	}

	if cfg.GCSBucket != "" {
		var clientOpts []option.ClientOption
		if cfg.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		gcs, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			client.Close()
			return nil, errors.NewBackendError(Kind, "gcs client", err)
		}
		opts = append(opts,
			WithObjectStore(&GCSStore{bucket: gcs.Bucket(cfg.GCSBucket)}),
			withCloser(func() { _ = gcs.Close() }),
		)
	}

	return New(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), opts...), nil
}

// RunID is the run tag attached to every point.
func (s *Sink) RunID() string {
	return s.runID
}

func (s *Sink) objectName(path string) string {
	if s.prefix == "" {
		return s.runID + "/" + path
	}
	return s.prefix + "/" + s.runID + "/" + path
}

func (s *Sink) checkOpen(op string) error {
	if s.closed.Load() {
		return errors.Wrapf(errors.ErrClosed, "remote: %s", op)
	}
	return nil
}

func (s *Sink) put(ctx context.Context, op, name, contentType string, data []byte) error {
	if err := s.checkOpen(op); err != nil {
		return err
	}
	if s.objects == nil {
		return errors.NewBackendError(Kind, op, errors.Wrap(errors.ErrNotImplemented, "no object store configured"))
	}
	if err := s.objects.Put(ctx, name, contentType, data); err != nil {
		return errors.NewBackendError(Kind, op, err)
	}
	return nil
}

func (s *Sink) AppendValue(ctx context.Context, path string, value float64, step int64) error {
	if err := s.checkOpen("append value"); err != nil {
		return err
	}
	p := influxdb2.NewPoint(s.measurement,
		map[string]string{"path": path, "run": s.runID},
		map[string]interface{}{"value": value, "step": step},
		s.now())
	if err := s.points.WritePoint(ctx, p); err != nil {
		return errors.NewBackendError(Kind, "write point", err)
	}
	return nil
}

func (s *Sink) SetValue(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "remote: encode %s", path)
	}
	return s.put(ctx, "set value", s.objectName(path)+".json", "application/json", data)
}

func (s *Sink) Upload(ctx context.Context, path string, blob tracking.Blob) error {
	data, err := blob.Bytes()
	if err != nil {
		return err
	}
	return s.put(ctx, "upload", s.objectName(path), contentType(blob), data)
}

func (s *Sink) AppendBlob(ctx context.Context, path string, blob tracking.Blob, step int64) error {
	data, err := blob.Bytes()
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s/%06d", s.objectName(path), s.seq.Add(1))
	return s.put(ctx, "append blob", name, contentType(blob), data)
}

func contentType(b tracking.Blob) string {
	if b.ContentType != "" {
		return b.ContentType
	}
	return tracking.ContentTypeBytes
}

func (s *Sink) WriteText(ctx context.Context, tag, text string, step int64) error {
	if err := s.checkOpen("write text"); err != nil {
		return err
	}
	p := influxdb2.NewPoint(s.measurement+"_text",
		map[string]string{"tag": tag, "run": s.runID},
		map[string]interface{}{"text": text, "step": step},
		s.now())
	if err := s.points.WritePoint(ctx, p); err != nil {
		return errors.NewBackendError(Kind, "write text", err)
	}
	return nil
}

// TrySetVersionTag stores the tag as a small object.
func (s *Sink) TrySetVersionTag(ctx context.Context, key, value string) bool {
	if err := s.put(ctx, "version tag", s.objectName(key), "text/plain", []byte(value)); err != nil {
		s.logger.Debug("version tag not stored", log.PathKey, key, log.ErrAttrKey, err.Error())
		return false
	}
	return true
}

type flusher interface {
	Flush(ctx context.Context) error
}

// Flush forwards to the point writer when it batches.
func (s *Sink) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return nil
	}
	if f, ok := s.points.(flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return errors.NewBackendError(Kind, "flush", err)
		}
	}
	return nil
}

// Close flushes and releases the clients.
func (s *Sink) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	if s.closed.Swap(true) {
		return nil
	}
	for _, c := range s.closers {
		c()
	}
	return err
}

// GCSStore puts objects into a bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
}

// NewGCSStore wraps a bucket handle.
func NewGCSStore(bucket *storage.BucketHandle) *GCSStore {
	return &GCSStore{bucket: bucket}
}

func (g *GCSStore) Put(ctx context.Context, name, contentType string, data []byte) error {
	w := g.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := bytes.NewReader(data).WriteTo(w); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write gs object %s", name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "close gs object %s", name)
	}
	return nil
}

var (
	_ tracking.Sink          = (*Sink)(nil)
	_ tracking.VersionTagger = (*Sink)(nil)
	_ ObjectStore            = (*GCSStore)(nil)
)
