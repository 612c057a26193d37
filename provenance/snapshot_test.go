package provenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDumpCopiesTrees(t *testing.T) {
	framework := t.TempDir()
	writeTree(t, framework, map[string]string{
		"go.mod":             "module example",
		"tracking/router.go": "package tracking",
		"provenance/exec.go": "package provenance",
	})
	expdir := filepath.Join(t.TempDir(), "mnist")
	writeTree(t, expdir, map[string]string{"train.go": "package mnist"})
	logdir := t.TempDir()

	s := NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(quietLogger()))
	dirs, err := s.Dump(logdir, expdir+"/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(logdir, "code", "runtrack"),
		filepath.Join(logdir, "code", "mnist"),
	}, dirs)
	assert.FileExists(t, filepath.Join(logdir, "code", "runtrack", "tracking", "router.go"))
	assert.FileExists(t, filepath.Join(logdir, "code", "mnist", "train.go"))
}

func TestDumpLeavesOutVCSMetadata(t *testing.T) {
	framework := t.TempDir()
	writeTree(t, framework, map[string]string{
		"go.mod":          "module example",
		".git/HEAD":       "ref: refs/heads/main",
		"tools/.hg/store": "x",
		".gitignore":      "logs/",
	})
	expdir := filepath.Join(t.TempDir(), "mnist")
	writeTree(t, expdir, map[string]string{".git/HEAD": "ref: refs/heads/main"})
	logdir := t.TempDir()

	s := NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(quietLogger()))
	_, err := s.Dump(logdir, expdir)
	require.NoError(t, err)

	code := filepath.Join(logdir, "code", "runtrack")
	assert.FileExists(t, filepath.Join(code, "go.mod"))
	assert.FileExists(t, filepath.Join(code, ".gitignore"))
	assert.NoDirExists(t, filepath.Join(code, ".git"))
	assert.NoDirExists(t, filepath.Join(code, "tools", ".hg"))
	// the experiment tree is copied as is
	assert.FileExists(t, filepath.Join(logdir, "code", "mnist", ".git", "HEAD"))
}

func TestDumpIsDestructiveRefresh(t *testing.T) {
	framework := t.TempDir()
	writeTree(t, framework, map[string]string{"a.go": "package a"})
	logdir := t.TempDir()
	stale := filepath.Join(logdir, "code", "runtrack", "stale.go")
	writeTree(t, filepath.Dir(stale), map[string]string{"stale.go": "old"})

	_, err := NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(quietLogger())).Dump(logdir, "")
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(logdir, "code", "runtrack", "a.go"))
}

func TestDumpSkipsDestinationInsideSource(t *testing.T) {
	framework := t.TempDir()
	writeTree(t, framework, map[string]string{"a.go": "package a"})
	logdir := filepath.Join(framework, "runs", "1")

	_, err := NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(quietLogger())).Dump(logdir, "")
	require.NoError(t, err)

	copied := filepath.Join(logdir, "code", "runtrack")
	assert.FileExists(t, filepath.Join(copied, "a.go"))
	assert.NoDirExists(t, filepath.Join(copied, "runs", "1", "code", "runtrack"))
}

func TestDumpKeepsSymlinks(t *testing.T) {
	framework := t.TempDir()
	writeTree(t, framework, map[string]string{"real.go": "package a"})
	require.NoError(t, os.Symlink("real.go", filepath.Join(framework, "link.go")))
	logdir := t.TempDir()

	_, err := NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(quietLogger())).Dump(logdir, "")
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(logdir, "code", "runtrack", "link.go"))
	require.NoError(t, err)
	assert.Equal(t, "real.go", target)
}

func TestDumpMissingSourceIsFatal(t *testing.T) {
	framework := t.TempDir()
	logdir := t.TempDir()
	s := NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(quietLogger()))

	_, err := s.Dump(logdir, filepath.Join(t.TempDir(), "does-not-exist"))

	var capErr *errors.CaptureError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "experiment snapshot", capErr.Step)

	_, err = NewSnapshotter(WithFrameworkDir(filepath.Join(framework, "missing"))).Dump(logdir, "")
	assert.True(t, errors.As(err, &capErr))
}

func TestDefaultFrameworkDirIsModuleRoot(t *testing.T) {
	dir := defaultFrameworkDir()
	assert.FileExists(t, filepath.Join(dir, "go.mod"))
	assert.DirExists(t, filepath.Join(dir, "provenance"))
}
