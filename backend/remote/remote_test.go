package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

type fakePoints struct {
	lines   []string
	flushes int
	err     error
}

func (f *fakePoints) WritePoint(_ context.Context, points ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	for _, p := range points {
		f.lines = append(f.lines, write.PointToLineProtocol(p, time.Nanosecond))
	}
	return nil
}

func (f *fakePoints) Flush(context.Context) error {
	f.flushes++
	return nil
}

type object struct {
	contentType string
	data        []byte
}

type fakeObjects map[string]object

func (f fakeObjects) Put(_ context.Context, name, contentType string, data []byte) error {
	f[name] = object{contentType: contentType, data: data}
	return nil
}

func (f fakeObjects) names() []string {
	var out []string
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newTestSink(points *fakePoints, objects fakeObjects) *Sink {
	clock := func() time.Time { return time.Unix(1700000000, 0) }
	return New(points,
		WithObjectStore(objects),
		WithPrefix("runs/"),
		WithRunID("run-1"),
		WithClock(clock),
	)
}

func TestAppendValueWritesPoint(t *testing.T) {
	ctx := context.Background()
	points := &fakePoints{}
	s := newTestSink(points, fakeObjects{})

	require.NoError(t, s.AppendValue(ctx, "experiment/epoch/loss", 0.5, 3))

	require.Len(t, points.lines, 1)
	line := points.lines[0]
	assert.True(t, strings.HasPrefix(line, "runtrack,"), line)
	assert.Contains(t, line, "path=experiment/epoch/loss")
	assert.Contains(t, line, "run=run-1")
	assert.Contains(t, line, "step=3i")
	assert.Contains(t, line, "value=0.5")
	assert.Contains(t, line, "1700000000000000000")
}

func TestWriteTextUsesTextMeasurement(t *testing.T) {
	points := &fakePoints{}
	s := newTestSink(points, fakeObjects{})

	require.NoError(t, s.WriteText(context.Background(), "_config", "{}", 0))

	require.Len(t, points.lines, 1)
	assert.True(t, strings.HasPrefix(points.lines[0], "runtrack_text,"), points.lines[0])
	assert.Contains(t, points.lines[0], "tag=_config")
}

func TestObjectsLayout(t *testing.T) {
	ctx := context.Background()
	objects := fakeObjects{}
	s := newTestSink(&fakePoints{}, objects)

	require.NoError(t, s.SetValue(ctx, "experiment/hparams", map[string]any{"lr": 0.1}))
	require.NoError(t, s.Upload(ctx, "experiment/_artifacts/model", tracking.Blob{Data: []byte("w")}))
	img := tracking.Blob{Data: []byte{1}, ContentType: tracking.ContentTypePNG}
	require.NoError(t, s.AppendBlob(ctx, "experiment/_images/curve", img, 1))
	require.NoError(t, s.AppendBlob(ctx, "experiment/_images/curve", img, 2))

	assert.Equal(t, []string{
		"runs/run-1/experiment/_artifacts/model",
		"runs/run-1/experiment/_images/curve/000001",
		"runs/run-1/experiment/_images/curve/000002",
		"runs/run-1/experiment/hparams.json",
	}, objects.names())
	assert.Equal(t, `{"lr":0.1}`, string(objects["runs/run-1/experiment/hparams.json"].data))
	assert.Equal(t, tracking.ContentTypeBytes, objects["runs/run-1/experiment/_artifacts/model"].contentType)
	assert.Equal(t, tracking.ContentTypePNG, objects["runs/run-1/experiment/_images/curve/000001"].contentType)
}

func TestRunsSharingStoreDoNotCollide(t *testing.T) {
	ctx := context.Background()
	objects := fakeObjects{}
	a := New(&fakePoints{}, WithObjectStore(objects), WithRunID("run-a"))
	b := New(&fakePoints{}, WithObjectStore(objects), WithRunID("run-b"))
	img := tracking.Blob{Data: []byte{1}, ContentType: tracking.ContentTypePNG}

	require.NoError(t, a.SetValue(ctx, "experiment/hparams", map[string]any{"lr": 0.1}))
	require.NoError(t, b.SetValue(ctx, "experiment/hparams", map[string]any{"lr": 0.5}))
	require.NoError(t, a.AppendBlob(ctx, "experiment/_images/curve", img, 1))
	require.NoError(t, b.AppendBlob(ctx, "experiment/_images/curve", img, 1))

	assert.Equal(t, []string{
		"run-a/experiment/_images/curve/000001",
		"run-a/experiment/hparams.json",
		"run-b/experiment/_images/curve/000001",
		"run-b/experiment/hparams.json",
	}, objects.names())
	assert.Equal(t, `{"lr":0.1}`, string(objects["run-a/experiment/hparams.json"].data))
	assert.Equal(t, `{"lr":0.5}`, string(objects["run-b/experiment/hparams.json"].data))
}

func TestNoObjectStore(t *testing.T) {
	s := New(&fakePoints{})

	err := s.Upload(context.Background(), "a", tracking.Blob{Data: []byte{1}})
	var backendErr *errors.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))
	assert.False(t, s.TrySetVersionTag(context.Background(), "k", "v"))
}

func TestVersionTag(t *testing.T) {
	objects := fakeObjects{}
	s := newTestSink(&fakePoints{}, objects)

	assert.True(t, s.TrySetVersionTag(context.Background(), tracking.VersionTagKey, "0.1.0"))
	assert.Equal(t, "0.1.0", string(objects["runs/run-1/"+tracking.VersionTagKey].data))
}

func TestWriteFailureIsBackendError(t *testing.T) {
	s := newTestSink(&fakePoints{err: fmt.Errorf("503 service unavailable")}, fakeObjects{})

	err := s.AppendValue(context.Background(), "a", 1, 0)
	var backendErr *errors.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, "write point", backendErr.Op)
}

func TestCloseFlushesOnce(t *testing.T) {
	ctx := context.Background()
	points := &fakePoints{}
	closed := 0
	s := New(points, withCloser(func() { closed++ }))

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, 1, points.flushes)
	assert.Equal(t, 1, closed)
	assert.True(t, errors.Is(s.AppendValue(ctx, "a", 1, 0), errors.ErrClosed))
}

func TestDialHealthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"name":"influxdb","status":"fail","message":"starting"}`))
	}))
	defer srv.Close()

	_, err := backend.Open(context.Background(), backend.Config{
		Kind:   Kind,
		Remote: backend.RemoteConfig{InfluxURL: srv.URL, Org: "o", Bucket: "b"},
	})

	var backendErr *errors.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, Kind, backendErr.Backend)
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), backend.RemoteConfig{})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}
