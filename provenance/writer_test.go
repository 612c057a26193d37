package provenance

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/backend/memory"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

func testWriter(t *testing.T, runner CommandRunner, opts ...WriterOption) (*Writer, *memory.Sink) {
	t.Helper()
	framework := t.TempDir()
	writeTree(t, framework, map[string]string{"go.mod": "module runtrack"})

	sink := memory.New()
	logger := quietLogger()
	base := []WriterOption{
		WithProbe(testProbe(runner, map[string]string{"USER": "alice"})),
		WithCollector(NewCollector(WithCollectorRunner(runner), WithCondaPrefix(condaPrefix(t)), WithCollectorLogger(logger))),
		WithSnapshotter(NewSnapshotter(WithFrameworkDir(framework), WithSnapshotterLogger(logger))),
		WithTextSink(sink),
		WithWriterLogger(logger),
	}
	return NewWriter(append(base, opts...)...), sink
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestCaptureDocumentConfig(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"pip freeze":          "numpy==1.26.4\ntorch==2.2.0",
		"conda list --export": "python=3.11.5",
	}}
	w, sink := testWriter(t, runner)

	cfgPath := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(trainYAML), 0o644))
	doc, err := LoadDocument(cfgPath)
	require.NoError(t, err)
	doc = doc.WithGetenv(func(string) string { return "" })

	expdir := filepath.Join(t.TempDir(), "mnist")
	writeTree(t, expdir, map[string]string{"experiment.go": "package mnist"})

	logdir := t.TempDir()
	rec, err := w.Capture(context.Background(), logdir, doc, CaptureOptions{
		ConfigPaths: []string{cfgPath},
		ExpDir:      expdir,
	})
	require.NoError(t, err)

	configs := filepath.Join(logdir, "configs")
	for _, name := range []string{"config.yaml", "_environment.json", "_config.json", "pip-packages.txt", "conda-packages.txt", "train.yaml"} {
		assert.FileExists(t, filepath.Join(configs, name))
	}
	assert.FileExists(t, filepath.Join(logdir, "code", "runtrack", "go.mod"))
	assert.FileExists(t, filepath.Join(logdir, "code", "mnist", "experiment.go"))
	assert.Len(t, rec.CodeDirs, 2)

	env := readJSON(t, filepath.Join(configs, "_environment.json"))
	assert.Equal(t, "alice", env["user"])
	assert.NotContains(t, env, "git")

	cfg := readJSON(t, filepath.Join(configs, "_config.json"))
	assert.Equal(t, "resnet-32", cfg["model"].(map[string]any)["tag"])

	raw, err := os.ReadFile(filepath.Join(configs, "_config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"model\"")

	texts := sink.Texts()
	tags := make([]string, 0, len(texts))
	for _, txt := range texts {
		tags = append(tags, txt.Tag)
		assert.Equal(t, int64(0), txt.Step)
	}
	assert.Equal(t, []string{"_config", "_environment", "pip-packages", "conda-packages"}, tags)
	assert.Equal(t, "numpy==1.26.4\n\ntorch==2.2.0", texts[2].Text)
	assert.True(t, strings.Contains(texts[1].Text, "\n\n  \"go_version\""), texts[1].Text)
}

func TestCaptureWithoutConfigOrPackages(t *testing.T) {
	w, sink := testWriter(t, &fakeRunner{})
	captureWarnings(t)
	logdir := t.TempDir()

	rec, err := w.Capture(context.Background(), logdir, nil, CaptureOptions{})
	require.NoError(t, err)

	configs := filepath.Join(logdir, "configs")
	assert.FileExists(t, filepath.Join(configs, "_environment.json"))
	for _, name := range []string{"_config.json", "config.yaml", "pip-packages.txt", "conda-packages.txt"} {
		assert.NoFileExists(t, filepath.Join(configs, name))
	}
	assert.Equal(t, Manifest{}, rec.Packages)

	var tags []string
	for _, txt := range sink.Texts() {
		tags = append(tags, txt.Tag)
	}
	assert.Equal(t, []string{"_environment", "pip-packages"}, tags)
}

func TestCaptureDocumentWithIntegerKeys(t *testing.T) {
	w, _ := testWriter(t, &fakeRunner{outputs: map[string]string{"pip freeze": "six==1.16.0"}})
	logdir := t.TempDir()

	doc, err := ParseDocument([]byte("class_weights:\n  0: 1.0\n  1: 2.5\n"))
	require.NoError(t, err)

	_, err = w.Capture(context.Background(), logdir, doc, CaptureOptions{})
	require.NoError(t, err)

	cfg := readJSON(t, filepath.Join(logdir, "configs", "_config.json"))
	assert.Equal(t, map[string]any{"0": 1.0, "1": 2.5}, cfg["class_weights"])
	assert.FileExists(t, filepath.Join(logdir, "configs", "config.yaml"))
}

func TestCapturePlainConfig(t *testing.T) {
	w, _ := testWriter(t, &fakeRunner{outputs: map[string]string{"pip freeze": "six==1.16.0"}})
	warnings := captureWarnings(t)
	logdir := t.TempDir()

	cfg := map[string]any{"runner": map[string]any{"_target_": "demo"}, "note": "<b>&</b>"}
	_, err := w.Capture(context.Background(), logdir, cfg, CaptureOptions{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(logdir, "configs", "_config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<b>&</b>")
	assert.NoFileExists(t, filepath.Join(logdir, "configs", "config.yaml"))
	assert.Len(t, warnings(), 1)
}

func TestCaptureFatalFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing config path", func(t *testing.T) {
		w, _ := testWriter(t, &fakeRunner{})
		captureWarnings(t)
		_, err := w.Capture(ctx, t.TempDir(), nil, CaptureOptions{ConfigPaths: []string{"/nonexistent/train.yaml"}})

		var capErr *errors.CaptureError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, "copy config", capErr.Step)
	})

	t.Run("missing expdir", func(t *testing.T) {
		w, sink := testWriter(t, &fakeRunner{})
		captureWarnings(t)
		_, err := w.Capture(ctx, t.TempDir(), nil, CaptureOptions{ExpDir: "/nonexistent/exp"})

		var capErr *errors.CaptureError
		require.True(t, errors.As(err, &capErr))
		assert.Empty(t, sink.Texts())
	})
}

type panickingText struct{ calls int }

func (p *panickingText) WriteText(context.Context, string, string, int64) error {
	p.calls++
	panic("text sink exploded")
}

func TestCaptureMirrorPanicIsLogged(t *testing.T) {
	text := &panickingText{}
	w, _ := testWriter(t, &fakeRunner{outputs: map[string]string{"pip freeze": "six==1.16.0"}}, WithTextSink(text))
	captureWarnings(t)
	logdir := t.TempDir()

	rec, err := w.Capture(context.Background(), logdir, map[string]any{"lr": 0.1}, CaptureOptions{})

	require.NoError(t, err)
	assert.Equal(t, 3, text.calls)
	assert.FileExists(t, filepath.Join(rec.Dir, "_config.json"))
}
