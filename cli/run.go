package cli

import (
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/backend/local"
	"github.com/YuminosukeSato/runtrack/experiment"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
	"github.com/YuminosukeSato/runtrack/provenance"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// TrackingDir is the default local store directory inside a logdir.
const TrackingDir = "tracking"

func (a *app) runCommand() *cobra.Command {
	var (
		logdir      string
		configPath  string
		expdir      string
		configFiles []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture provenance, then run the experiment's runner with tracking",
		Long: `run loads the experiment registered for the basename of --expdir, captures
the run provenance under --logdir, opens the configured backend and calls the
runner named by runner._target_ in --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, logdir, configPath, expdir, configFiles)
		},
	}
	cmd.Flags().StringVar(&logdir, "logdir", "", "run log directory")
	cmd.Flags().StringVar(&configPath, "config", "", "run configuration YAML")
	cmd.Flags().StringVar(&expdir, "expdir", "", "experiment source directory")
	cmd.Flags().StringSliceVar(&configFiles, "config-file", nil, "additional files copied into configs/")
	for _, name := range []string{"logdir", "config", "expdir"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) run(cmd *cobra.Command, logdir, configPath, expdir string, configFiles []string) (err error) {
	ctx := cmd.Context()
	start := time.Now()
	logger := a.logger.With(log.OperationKey, log.OperationRun, log.LogdirKey, logdir, log.ExpdirKey, expdir)

	registry, err := a.catalog.Load(expdir)
	if err != nil {
		return err
	}
	cfg, paths, err := loadRunConfig(configPath, configFiles)
	if err != nil {
		return err
	}

	bcfg := a.settings.Backend
	if bcfg.Kind == local.Kind && bcfg.Local.Dir == "" && !bcfg.Local.InMemory {
		bcfg.Local.Dir = filepath.Join(logdir, TrackingDir)
	}
	sink, err := backend.Open(ctx, bcfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	instrumented, err := backend.Instrument(sink, reg)
	if err != nil {
		_ = sink.Close(ctx)
		return err
	}

	opts := append(a.settings.Provenance.WriterOptions(logger), provenance.WithTextSink(instrumented))
	rec, err := provenance.NewWriter(opts...).Capture(ctx, logdir, cfg, provenance.CaptureOptions{
		ConfigPaths: paths,
		ExpDir:      expdir,
	})
	if err != nil {
		_ = instrumented.Close(ctx)
		return err
	}

	resolved, _ := rec.Config.(map[string]any)
	runner, err := registry.NewRunner(resolved)
	if err != nil {
		_ = instrumented.Close(ctx)
		return err
	}

	router, err := tracking.NewRouter(ctx, instrumented, a.settings.Tracking, tracking.WithLogger(logger))
	if err != nil {
		_ = instrumented.Close(ctx)
		return err
	}
	defer func() {
		if closeErr := router.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
		logger.Info("run finished",
			"writes", countWrites(reg),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}()

	if err := router.LogHparams(ctx, resolved); err != nil {
		return err
	}

	target := resolved[experiment.RunnerSection].(map[string]any)[experiment.TargetKey]
	logger.Info("run started", log.RunnerKey, target, log.BackendKey, bcfg.Kind)
	if err := runner.Run(ctx, experiment.Env{
		Router: router,
		Logdir: logdir,
		Logger: logger,
		Config: resolved,
	}); err != nil {
		return errors.Wrapf(err, "runner %v", target)
	}
	return nil
}

// countWrites sums the sink write counters by kind.
func countWrites(reg prometheus.Gatherer) map[string]float64 {
	out := make(map[string]float64)
	families, err := reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		if mf.GetName() != "runtrack_sink_writes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" {
					out[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}
