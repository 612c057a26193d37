package provenance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// Files and text tags produced by Capture.
const (
	ConfigsDir      = "configs"
	EnvironmentFile = "_environment.json"
	ConfigFile      = "_config.json"
	ConfigYAMLFile  = "config.yaml"
	PipFile         = "pip-packages.txt"
	CondaFile       = "conda-packages.txt"

	TagConfig      = "_config"
	TagEnvironment = "_environment"
	TagPip         = "pip-packages"
	TagConda       = "conda-packages"
)

// CaptureOptions are the per-run inputs of Capture.
type CaptureOptions struct {
	// ConfigPaths are copied verbatim into configs/ under their base names.
	ConfigPaths []string
	// ExpDir is the user's experiment directory, copied to code/<basename>.
	ExpDir string
}

// Record describes what Capture wrote.
type Record struct {
	Dir         string
	Environment Snapshot
	Config      any
	Packages    Manifest
	Files       []string
	CodeDirs    []string
}

// Writer orchestrates a provenance capture.
type Writer struct {
	probe       *Probe
	collector   *Collector
	snapshotter *Snapshotter
	text        tracking.TextSink
	logger      log.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithProbe sets the environment probe.
func WithProbe(p *Probe) WriterOption {
	return func(w *Writer) {
		w.probe = p
	}
}

// WithCollector sets the package collector.
func WithCollector(c *Collector) WriterOption {
	return func(w *Writer) {
		w.collector = c
	}
}

// WithSnapshotter sets the code snapshotter.
func WithSnapshotter(s *Snapshotter) WriterOption {
	return func(w *Writer) {
		w.snapshotter = s
	}
}

// WithTextSink mirrors the captured texts into sink at step 0.
func WithTextSink(sink tracking.TextSink) WriterOption {
	return func(w *Writer) {
		w.text = sink
	}
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger log.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter returns a Writer with default components.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.GetLoggerWithName("provenance")
	}
	if w.probe == nil {
		w.probe = NewProbe(WithProbeLogger(w.logger))
	}
	if w.collector == nil {
		w.collector = NewCollector(WithCollectorLogger(w.logger))
	}
	if w.snapshotter == nil {
		w.snapshotter = NewSnapshotter(WithSnapshotterLogger(w.logger))
	}
	return w
}

// Environment returns a fresh environment snapshot.
func (w *Writer) Environment(ctx context.Context) Snapshot {
	return w.probe.Snapshot(ctx)
}

// Capture writes the provenance of a run under logdir. cfg may be nil, a
// *Document or any JSON-serializable value. It must run once, before the
// first training iteration; filesystem failures are returned as
// *errors.CaptureError.
func (w *Writer) Capture(ctx context.Context, logdir string, cfg any, opts CaptureOptions) (*Record, error) {
	start := time.Now()
	logger := w.logger.With(log.OperationKey, log.OperationCapture, log.LogdirKey, logdir)

	dir := filepath.Join(logdir, ConfigsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewCaptureError("configs dir", dir, err)
	}
	rec := &Record{Dir: dir, Config: cfg}

	if doc, ok := cfg.(*Document); ok {
		rendered, err := doc.YAML()
		if err != nil {
			return nil, errors.NewCaptureError("resolve config", doc.Source(), err)
		}
		if err := w.writeFile(rec, ConfigYAMLFile, rendered); err != nil {
			return nil, err
		}
		if rec.Config, err = doc.Resolve(); err != nil {
			return nil, errors.NewCaptureError("resolve config", doc.Source(), err)
		}
	}

	rec.Environment = w.probe.Snapshot(ctx)
	if err := w.writeJSON(rec, EnvironmentFile, rec.Environment); err != nil {
		return nil, err
	}
	if rec.Config != nil {
		if err := w.writeJSON(rec, ConfigFile, rec.Config); err != nil {
			return nil, err
		}
	}

	rec.Packages = w.collector.Collect(ctx)
	if rec.Packages.Pip != "" {
		if err := w.writeFile(rec, PipFile, []byte(rec.Packages.Pip)); err != nil {
			return nil, err
		}
	}
	if rec.Packages.Conda != "" {
		if err := w.writeFile(rec, CondaFile, []byte(rec.Packages.Conda)); err != nil {
			return nil, err
		}
	}

	for _, path := range opts.ConfigPaths {
		if err := w.copyConfig(rec, path); err != nil {
			return nil, err
		}
	}

	dirs, err := w.snapshotter.Dump(logdir, opts.ExpDir)
	rec.CodeDirs = dirs
	if err != nil {
		return nil, err
	}

	w.mirror(ctx, rec, logger)

	logger.Info("provenance captured",
		"files", len(rec.Files),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (w *Writer) writeFile(rec *Record, name string, data []byte) error {
	path := filepath.Join(rec.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewCaptureError("write "+name, path, err)
	}
	rec.Files = append(rec.Files, path)
	return nil
}

func (w *Writer) writeJSON(rec *Record, name string, v any) error {
	data, err := encodeJSON(v, "    ")
	if err != nil {
		return errors.NewCaptureError("encode "+name, "", err)
	}
	return w.writeFile(rec, name, data)
}

func (w *Writer) copyConfig(rec *Record, src string) error {
	dst := filepath.Join(rec.Dir, filepath.Base(src))
	in, err := os.Open(src)
	if err != nil {
		return errors.NewCaptureError("copy config", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.NewCaptureError("copy config", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.NewCaptureError("copy config", src, err)
	}
	if err := out.Close(); err != nil {
		return errors.NewCaptureError("copy config", dst, err)
	}
	rec.Files = append(rec.Files, dst)
	return nil
}

// mirror sends the captured texts to the text sink. Newlines are doubled
// so that markdown renderers keep line breaks. Failures, panics included,
// are logged only.
func (w *Writer) mirror(ctx context.Context, rec *Record, logger log.Logger) {
	if w.text == nil {
		return
	}
	write := func(tag, text string) {
		err := errors.SafeExecute("mirror "+tag, func() error {
			return w.text.WriteText(ctx, tag, markdown(text), 0)
		})
		if err != nil {
			logger.Warn("mirror text failed", log.PathKey, tag, log.ErrAttrKey, err.Error())
		}
	}

	if rec.Config != nil {
		if data, err := encodeJSON(rec.Config, "  "); err == nil {
			write(TagConfig, strings.TrimSpace(string(data)))
		}
	}
	if data, err := encodeJSON(rec.Environment, "  "); err == nil {
		write(TagEnvironment, strings.TrimSpace(string(data)))
	}
	write(TagPip, rec.Packages.Pip)
	if rec.Packages.Conda != "" {
		write(TagConda, rec.Packages.Conda)
	}
}

func markdown(s string) string {
	return strings.ReplaceAll(s, "\n", "\n\n")
}

func encodeJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
