package cli

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/runtrack/backend/local"
	"github.com/YuminosukeSato/runtrack/metrics"
	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
)

func (a *app) plotCommand() *cobra.Command {
	var (
		storeDir string
		path     string
		out      string
		title    string
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render a series of a local tracking store to PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := local.Open(local.Config{Dir: storeDir, Logger: a.logger})
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			if list {
				paths, err := store.SeriesPaths()
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			}
			if path == "" || out == "" {
				return errors.NewValidationError("path", "--path and --out are required unless --list is set", path)
			}

			points, err := store.Series(path)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				return errors.Wrapf(errors.ErrNotFound, "series %s", path)
			}
			if title == "" {
				title = path
			}
			img, err := metrics.RenderCurve(title, points)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.logger.Info("curve written", log.OperationKey, log.OperationPlot, log.PathKey, path, log.FileKey, out, "points", len(points))
			return nil
		},
	}
	cmd.Flags().StringVar(&storeDir, "store", "", "local tracking store directory (<logdir>/tracking)")
	cmd.Flags().StringVar(&path, "path", "", "series path, e.g. experiment/train/loader/loss")
	cmd.Flags().StringVar(&out, "out", "", "output PNG file")
	cmd.Flags().StringVar(&title, "title", "", "plot title (defaults to the path)")
	cmd.Flags().BoolVar(&list, "list", false, "list the series paths of the store")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}
