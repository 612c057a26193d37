package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/tracking"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelWarn)
	s, err := Open(Config{InMemory: true, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStoreSeriesAccumulate(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	require.NoError(t, s.AppendValue(ctx, "experiment/train/loader/loss", 0.9, 1))
	require.NoError(t, s.AppendValue(ctx, "experiment/train/loader/loss", 0.5, 2))
	require.NoError(t, s.AppendValue(ctx, "experiment/train/loader/loss/auc", 0.7, 1))

	points, err := s.Series("experiment/train/loader/loss")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[0].Step)
	assert.Equal(t, 0.5, points[1].Value)

	paths, err := s.SeriesPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"experiment/train/loader/loss", "experiment/train/loader/loss/auc"}, paths)
}

func TestStoreValuesAndBlobs(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	require.NoError(t, s.SetValue(ctx, "experiment/hparams", map[string]any{"lr": 0.1, "opt": "adam"}))
	var hparams map[string]any
	require.NoError(t, s.Value("experiment/hparams", &hparams))
	assert.Equal(t, "adam", hparams["opt"])

	file := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(file, []byte("weights"), 0o644))
	require.NoError(t, s.Upload(ctx, "experiment/_artifacts/model", tracking.Blob{FilePath: file}))

	rec, err := s.Blob("experiment/_artifacts/model")
	require.NoError(t, err)
	assert.Equal(t, []byte("weights"), rec.Data)
	assert.Equal(t, file, rec.Source)

	png := tracking.Blob{Data: []byte{0x89, 'P'}, ContentType: tracking.ContentTypePNG}
	require.NoError(t, s.AppendBlob(ctx, "experiment/_images/curve", png, 1))
	require.NoError(t, s.AppendBlob(ctx, "experiment/_images/curve", png, 2))

	recs, err := s.Blobs("experiment/_images/curve")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[1].Step)
	assert.Equal(t, tracking.ContentTypePNG, recs[0].ContentType)
}

func TestStoreMissingValue(t *testing.T) {
	s := openInMemory(t)

	var v any
	err := s.Value("nope", &v)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = s.Blob("nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStoreTextsAndTags(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	require.NoError(t, s.WriteText(ctx, "pip-packages", "numpy==1.26\n\n", 0))
	texts, err := s.Texts("pip-packages")
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "numpy==1.26\n\n", texts[0].Text)

	assert.True(t, s.TrySetVersionTag(ctx, tracking.VersionTagKey, "0.1.0"))
	tag, err := s.Tag(tracking.VersionTagKey)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", tag)
	assert.NotEmpty(t, s.RunID())
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	err = s.AppendValue(ctx, "a", 1, 0)
	assert.True(t, errors.Is(err, errors.ErrClosed))
	assert.False(t, s.TrySetVersionTag(ctx, "k", "v"))
}

func TestStorePersistentReopenKeepsRunID(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "tracking")

	s, err := Open(Config{Dir: dir, SyncWrites: true})
	require.NoError(t, err)
	runID := s.RunID()
	require.NoError(t, s.AppendValue(ctx, "experiment/epoch/loss", 0.3, 1))
	require.NoError(t, s.Close(ctx))

	reopened, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close(ctx)

	assert.Equal(t, runID, reopened.RunID())
	points, err := reopened.Series("experiment/epoch/loss")
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestRegisteredKind(t *testing.T) {
	sink, err := backend.Open(context.Background(), backend.Config{
		Kind:  Kind,
		Local: backend.LocalConfig{InMemory: true},
	})
	require.NoError(t, err)
	defer sink.Close(context.Background())

	_, ok := sink.(*Store)
	assert.True(t, ok)
}

func TestRouterOverStore(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	r, err := tracking.NewRouter(ctx, s, tracking.DefaultConfig())
	require.NoError(t, err)

	batch := tracking.NewMetricBatch().Set("loss", 2.3).Set("loss/std", 0.1)
	require.NoError(t, r.LogMetrics(ctx, batch, tracking.ScopeLoader, tracking.RunCoordinates{EpochStep: 1, LoaderKey: "valid"}))

	paths, err := s.SeriesPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"experiment/valid/loader/loss/std", "experiment/valid/loader/loss/val"}, paths)

	tag, err := s.Tag(tracking.VersionTagKey)
	require.NoError(t, err)
	assert.Equal(t, tracking.Version, tag)
}
