// Package metrics は学習ループで使うメトリクスの集計と可視化を提供します。
//
// Accumulator はバッチごとの値をローダー単位で集計し、tracking.Router に
// そのまま渡せる MetricBatch を返します。RenderCurve は記録済みの系列を
// 画像にし、Router.LogImage やCLIの plot コマンドから利用されます。
package metrics
