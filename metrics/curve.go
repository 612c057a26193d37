package metrics

import (
	"image"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// 曲線画像のデフォルトサイズ
const (
	DefaultCurveWidth  = 6 * vg.Inch
	DefaultCurveHeight = 4 * vg.Inch
)

// CurveOptions は RenderCurveWithOptions の描画設定
type CurveOptions struct {
	Width  vg.Length
	Height vg.Length
	XLabel string
	YLabel string
}

// RenderCurve は系列をステップ対値の折れ線として描画する
func RenderCurve(title string, points []tracking.Point) (image.Image, error) {
	return RenderCurveWithOptions(title, points, CurveOptions{})
}

// RenderCurveWithOptions は描画設定を指定して RenderCurve を行う。
// NaN/Infの点は描画対象から除く。
func RenderCurveWithOptions(title string, points []tracking.Point, opts CurveOptions) (image.Image, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultCurveWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultCurveHeight
	}
	if opts.XLabel == "" {
		opts.XLabel = "step"
	}

	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if math.IsNaN(pt.Value) || math.IsInf(pt.Value, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(pt.Step), Y: pt.Value})
	}
	if len(xys) == 0 {
		return nil, errors.NewValueError("RenderCurve", "no finite points to draw")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, errors.Wrap(err, "RenderCurve: build line")
	}
	p.Add(line)
	if len(xys) == 1 {
		// 単一点は線にならないため点も描く
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, errors.Wrap(err, "RenderCurve: build scatter")
		}
		p.Add(scatter)
	}

	canvas := vgimg.New(opts.Width, opts.Height)
	p.Draw(draw.New(canvas))
	return canvas.Image(), nil
}
