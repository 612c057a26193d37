package tracking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	paths  []string
	tags   []string
	closed bool
}

func (s *recordingSink) AppendValue(_ context.Context, path string, _ float64, _ int64) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) SetValue(_ context.Context, path string, _ any) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) Upload(_ context.Context, path string, _ Blob) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) AppendBlob(_ context.Context, path string, _ Blob, _ int64) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) WriteText(_ context.Context, tag, _ string, _ int64) error {
	s.tags = append(s.tags, tag)
	return nil
}

func (s *recordingSink) Flush(context.Context) error { return nil }

func (s *recordingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestNamespacePrefixesPaths(t *testing.T) {
	ctx := context.Background()
	root := &recordingSink{}
	h := Namespace(Namespace(root, "outer/"), "/inner")

	require.NoError(t, h.AppendValue(ctx, "a", 1, 0))
	require.NoError(t, h.SetValue(ctx, "b", 1))
	require.NoError(t, h.Upload(ctx, "c", Blob{Data: []byte{1}}))
	require.NoError(t, h.AppendBlob(ctx, "d", Blob{Data: []byte{1}}, 0))
	require.NoError(t, h.WriteText(ctx, "_config", "{}", 0))

	assert.Equal(t, []string{"outer/inner/a", "outer/inner/b", "outer/inner/c", "outer/inner/d"}, root.paths)
	assert.Equal(t, []string{"_config"}, root.tags)
	assert.Same(t, root, RootOf(h))
	assert.False(t, h.TrySetVersionTag(ctx, "k", "v"))

	require.NoError(t, h.Close(ctx))
	assert.True(t, root.closed)
}

func TestBlobValidate(t *testing.T) {
	assert.NoError(t, Blob{Data: []byte{}}.Validate())
	assert.NoError(t, Blob{FilePath: "/x"}.Validate())
	assert.Error(t, Blob{}.Validate())
	assert.Error(t, Blob{Data: []byte{1}, FilePath: "/x"}.Validate())
}
