package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// StdSuffix は標準偏差のメトリクス名に付く接尾辞
const StdSuffix = "/std"

// Accumulator はメトリクス名ごとにサンプルを集計する。
// 名前の順序は最初に観測された順で保持される。
type Accumulator struct {
	keys    []string
	values  map[string][]float64
	weights map[string][]float64
}

// NewAccumulator は空の Accumulator を返す
func NewAccumulator() *Accumulator {
	return &Accumulator{
		values:  make(map[string][]float64),
		weights: make(map[string][]float64),
	}
}

// Add は重み1のサンプルを追加する
func (a *Accumulator) Add(name string, value float64) {
	a.AddWeighted(name, value, 1)
}

// AddWeighted は重み付きのサンプルを追加する。
// NaN/Infの値と正でない重みは警告を出して捨てる。
func (a *Accumulator) AddWeighted(name string, value, weight float64) {
	if err := errors.CheckScalar("accumulate "+name, value, int64(a.Count(name))); err != nil {
		errors.Warn(err)
		return
	}
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		errors.Warn(errors.NewValueError("accumulate "+name, "weight must be positive and finite"))
		return
	}
	if _, ok := a.values[name]; !ok {
		a.keys = append(a.keys, name)
	}
	a.values[name] = append(a.values[name], value)
	a.weights[name] = append(a.weights[name], weight)
}

// Update はバッチ内のすべての値を重み1で追加する
func (a *Accumulator) Update(batch *tracking.MetricBatch) {
	a.UpdateWeighted(batch, 1)
}

// UpdateWeighted はバッチ内のすべての値を同じ重みで追加する。
// 重みには通常バッチサイズを使う。
func (a *Accumulator) UpdateWeighted(batch *tracking.MetricBatch, weight float64) {
	batch.Each(func(name string, value float64) {
		a.AddWeighted(name, value, weight)
	})
}

// Count は name に集計されたサンプル数を返す
func (a *Accumulator) Count(name string) int {
	return len(a.values[name])
}

// Names は観測順のメトリクス名を返す
func (a *Accumulator) Names() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Compute は各メトリクスの重み付き平均を name に、標準偏差を name/std に
// 格納した MetricBatch を返す。サンプルが1つの場合、標準偏差は定義されない
// ため name/std は出力しない。
func (a *Accumulator) Compute() *tracking.MetricBatch {
	out := tracking.NewMetricBatch()
	for _, name := range a.keys {
		xs, ws := a.values[name], a.weights[name]
		if len(xs) == 1 {
			out.Set(name, xs[0])
			continue
		}
		mean, std := stat.MeanStdDev(xs, ws)
		out.Set(name, mean)
		out.Set(name+StdSuffix, std)
	}
	return out
}

// Reset は集計済みのサンプルをすべて破棄する
func (a *Accumulator) Reset() {
	a.keys = nil
	a.values = make(map[string][]float64)
	a.weights = make(map[string][]float64)
}
