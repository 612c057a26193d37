package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/runtrack/provenance"
)

func (a *app) captureCommand() *cobra.Command {
	var (
		logdir      string
		configPath  string
		expdir      string
		configFiles []string
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Write the provenance of a run under its log directory",
		Long: `capture writes <logdir>/configs (environment, packages and configuration)
and <logdir>/code (framework and experiment sources) without starting a run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, paths, err := loadRunConfig(configPath, configFiles)
			if err != nil {
				return err
			}
			w := provenance.NewWriter(a.settings.Provenance.WriterOptions(a.logger)...)
			rec, err := w.Capture(cmd.Context(), logdir, cfg, provenance.CaptureOptions{
				ConfigPaths: paths,
				ExpDir:      expdir,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range rec.Files {
				fmt.Fprintln(out, f)
			}
			for _, d := range rec.CodeDirs {
				fmt.Fprintln(out, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logdir, "logdir", "", "run log directory")
	cmd.Flags().StringVar(&configPath, "config", "", "run configuration YAML")
	cmd.Flags().StringVar(&expdir, "expdir", "", "experiment source directory")
	cmd.Flags().StringSliceVar(&configFiles, "config-file", nil, "additional files copied into configs/")
	_ = cmd.MarkFlagRequired("logdir")
	return cmd
}

func (a *app) envCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the environment snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := provenance.NewWriter(a.settings.Provenance.WriterOptions(a.logger)...)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(w.Environment(cmd.Context()))
		},
	}
}

// loadRunConfig loads the run configuration document, if any, and returns
// the list of files to copy verbatim into configs/.
func loadRunConfig(configPath string, extra []string) (any, []string, error) {
	var paths []string
	if configPath == "" {
		return nil, append(paths, extra...), nil
	}
	doc, err := provenance.LoadDocument(configPath)
	if err != nil {
		return nil, nil, err
	}
	paths = append(paths, configPath)
	return doc, append(paths, extra...), nil
}
