// Package config loads the runtrack tool settings file.
//
// Settings are YAML. Defaults are applied first and the file overrides
// them field by field, so a settings file only names what it changes:
//
//	log_level: debug
//	tracking:
//	  log_batch_metrics: true
//	backend:
//	  kind: remote
//	  remote:
//	    influx_url: http://localhost:8086
//	    org: ml
//	    bucket: runs
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/provenance"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// InfluxTokenEnv supplies the remote token when the file leaves it empty.
const InfluxTokenEnv = "RUNTRACK_INFLUX_TOKEN"

// Log formats. Cloud additionally installs a Cloud Logging slog default.
const (
	LogFormatZerolog = "zerolog"
	LogFormatCloud   = "cloud"
)

// Settings is the tool configuration.
type Settings struct {
	LogLevel   string          `yaml:"log_level"`
	LogFormat  string          `yaml:"log_format" validate:"oneof=zerolog cloud"`
	Tracking   tracking.Config `yaml:"tracking"`
	Backend    backend.Config  `yaml:"backend"`
	Provenance Provenance      `yaml:"provenance"`
}

// Provenance configures the capture step.
type Provenance struct {
	// FrameworkDir overrides the directory copied to code/runtrack.
	FrameworkDir string `yaml:"framework_dir"`
	// CondaPrefix overrides CONDA_PREFIX for the conda listing.
	CondaPrefix string `yaml:"conda_prefix"`
	// CommandTimeout bounds each external command (pip, conda, git).
	CommandTimeout time.Duration `yaml:"command_timeout" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		LogLevel:  "info",
		LogFormat: LogFormatZerolog,
		Tracking: tracking.DefaultConfig(),
		Backend:  backend.Config{Kind: "local"},
		Provenance: Provenance{
			CommandTimeout: provenance.DefaultCommandTimeout,
		},
	}
}

// Load reads settings from path. An empty path yields the defaults.
func Load(path string) (Settings, error) {
	if path == "" {
		s := Default()
		applyEnv(&s, os.Getenv)
		return s, s.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "open settings %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes settings from YAML bytes.
func Parse(data []byte) (Settings, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads YAML settings from r on top of the defaults. Unknown keys
// are rejected.
func Decode(r io.Reader) (Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Settings{}, errors.Wrap(err, "decode settings")
	}
	applyEnv(&s, os.Getenv)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func applyEnv(s *Settings, getenv func(string) string) {
	if s.Backend.Remote.InfluxToken == "" {
		s.Backend.Remote.InfluxToken = getenv(InfluxTokenEnv)
	}
}

// Validate checks the settings. The first failing field is reported as a
// *errors.ValidationError.
func (s Settings) Validate() error {
	if _, err := s.Level(); err != nil {
		return errors.NewValidationError("log_level", err.Error(), s.LogLevel)
	}
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.NewValidationError(fe.Namespace(), "failed on '"+fe.Tag()+"'", fe.Value())
	}
	return errors.Wrap(err, "validate settings")
}

// Level returns the parsed log level.
func (s Settings) Level() (log.Level, error) {
	return log.ParseLevel(s.LogLevel)
}

// Logger installs the global logger for the configured level and format,
// writing to w, and returns it.
func (s Settings) Logger(w io.Writer) (log.Logger, error) {
	level, err := s.Level()
	if err != nil {
		return nil, err
	}
	if s.LogFormat == LogFormatCloud {
		if err := log.SetupLogger(s.LogLevel, w); err != nil {
			return nil, err
		}
		return log.GetLogger(), nil
	}
	logger := log.NewZerologLogger(w, level)
	log.SetLogger(logger)
	return logger, nil
}

// WriterOptions builds the provenance writer components from the settings.
func (p Provenance) WriterOptions(logger log.Logger) []provenance.WriterOption {
	runner := provenance.ExecRunner{Timeout: p.CommandTimeout}

	snapOpts := []provenance.SnapshotterOption{provenance.WithSnapshotterLogger(logger)}
	if p.FrameworkDir != "" {
		snapOpts = append(snapOpts, provenance.WithFrameworkDir(p.FrameworkDir))
	}
	collectOpts := []provenance.CollectorOption{
		provenance.WithCollectorRunner(runner),
		provenance.WithCollectorLogger(logger),
	}
	if p.CondaPrefix != "" {
		collectOpts = append(collectOpts, provenance.WithCondaPrefix(p.CondaPrefix))
	}

	return []provenance.WriterOption{
		provenance.WithProbe(provenance.NewProbe(provenance.WithRunner(runner), provenance.WithProbeLogger(logger))),
		provenance.WithCollector(provenance.NewCollector(collectOpts...)),
		provenance.WithSnapshotter(provenance.NewSnapshotter(snapOpts...)),
		provenance.WithWriterLogger(logger),
	}
}
