package provenance

import (
	"context"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
)

// Package managers listed by a Collector.
const (
	ManagerPip   = "pip"
	ManagerConda = "conda"
)

// Manifest holds the verbatim listings of each package manager. A listing
// is empty when its manager is unavailable or failed.
type Manifest struct {
	Pip   string
	Conda string
}

// Collector lists installed packages.
type Collector struct {
	runner      CommandRunner
	condaPrefix string
	getenv      func(string) string
	logger      log.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithCollectorRunner sets the command runner.
func WithCollectorRunner(r CommandRunner) CollectorOption {
	return func(c *Collector) {
		c.runner = r
	}
}

// WithCondaPrefix sets the environment prefix searched for conda-meta.
// It defaults to $CONDA_PREFIX.
func WithCondaPrefix(prefix string) CollectorOption {
	return func(c *Collector) {
		c.condaPrefix = prefix
	}
}

// WithCollectorGetenv sets the environment lookup.
func WithCollectorGetenv(getenv func(string) string) CollectorOption {
	return func(c *Collector) {
		c.getenv = getenv
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(logger log.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector returns a Collector running real commands by default.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		runner: ExecRunner{},
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("provenance")
	}
	return c
}

// Collect lists pip packages, then conda packages when running inside a
// conda environment. The two listings are independent: a failure or panic
// in one leaves the other intact and surfaces a PackageListingWarning.
func (c *Collector) Collect(ctx context.Context) Manifest {
	m := Manifest{
		Pip: c.list(ctx, ManagerPip, "pip", "freeze"),
	}
	if c.inConda() {
		m.Conda = c.list(ctx, ManagerConda, "conda", "list", "--export")
	}
	return m
}

func (c *Collector) inConda() bool {
	prefix := c.condaPrefix
	if prefix == "" {
		prefix = c.getenv("CONDA_PREFIX")
	}
	if prefix == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(prefix, "conda-meta"))
	return err == nil && info.IsDir()
}

func (c *Collector) list(ctx context.Context, manager, name string, args ...string) string {
	out, err := errors.SafeValue(log.OperationListPkgs, func() (string, error) {
		return c.runner.Run(ctx, "", name, args...)
	})
	if err != nil {
		c.logger.Debug("package listing failed", log.PackageManagerKey, manager, log.ErrAttrKey, err.Error())
		errors.Warn(errors.NewPackageListingWarning(manager, err.Error()))
		return ""
	}
	return out
}
