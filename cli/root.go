// Package cli implements the runtrack command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	// Backends available to --settings backend.kind.
	_ "github.com/YuminosukeSato/runtrack/backend/local"
	_ "github.com/YuminosukeSato/runtrack/backend/memory"
	_ "github.com/YuminosukeSato/runtrack/backend/remote"

	"github.com/YuminosukeSato/runtrack/config"
	"github.com/YuminosukeSato/runtrack/experiment"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// app holds the state shared by all subcommands of one invocation.
type app struct {
	catalog *experiment.Catalog

	settingsPath string
	logLevel     string
	logFormat    string

	settings config.Settings
	logger   log.Logger
}

// NewRootCommand builds the runtrack command. Experiments available to
// "run" are looked up in catalog; nil means experiment.Default.
func NewRootCommand(catalog *experiment.Catalog) *cobra.Command {
	if catalog == nil {
		catalog = experiment.Default
	}
	a := &app{catalog: catalog}

	root := &cobra.Command{
		Use:     "runtrack",
		Short:   "Capture run provenance and route training metrics to a tracking backend",
		Version: tracking.Version,
		Long: `runtrack records where a training run came from (environment, packages,
configuration and code) under its log directory, and forwards the run's
metrics, images and artifacts to a tracking backend.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.settingsPath, "settings", "", "path to the runtrack settings YAML")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format override (zerolog, cloud)")

	root.AddCommand(
		a.captureCommand(),
		a.envCommand(),
		a.runCommand(),
		a.plotCommand(),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, catalog *experiment.Catalog, args []string) error {
	cmd := NewRootCommand(catalog)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.Load(a.settingsPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" || a.logFormat != "" {
		if a.logLevel != "" {
			settings.LogLevel = a.logLevel
		}
		if a.logFormat != "" {
			settings.LogFormat = a.logFormat
		}
		if err := settings.Validate(); err != nil {
			return err
		}
	}
	logger, err := settings.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.settings = settings
	a.logger = logger.With(log.ComponentKey, "cli")
	return nil
}
