package tracking

import (
	"github.com/YuminosukeSato/runtrack/pkg/log"
)

// Version is written to sinks that support version tags.
const Version = "0.1.0"

// VersionTagKey is the path of the integration version tag.
const VersionTagKey = "source_code/integrations/runtrack"

// Config controls what the router emits. It replaces process-wide flags.
type Config struct {
	// BaseNamespace is the root segment of every path.
	BaseNamespace string `yaml:"base_namespace" json:"base_namespace" validate:"required,excludes=/"`
	// LogBatchMetrics gates batch-scope metrics.
	LogBatchMetrics bool `yaml:"log_batch_metrics" json:"log_batch_metrics"`
	// LogEpochMetrics gates loader- and epoch-scope metrics.
	LogEpochMetrics bool `yaml:"log_epoch_metrics" json:"log_epoch_metrics"`
}

// DefaultConfig returns the router defaults.
func DefaultConfig() Config {
	return Config{
		BaseNamespace:   "experiment",
		LogBatchMetrics: false,
		LogEpochMetrics: true,
	}
}

// Option configures a Router
type Option func(*Router)

// WithLogger sets the logger used for skipped writes and diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithVersion overrides the version written under VersionTagKey.
func WithVersion(version string) Option {
	return func(r *Router) {
		r.version = version
	}
}
