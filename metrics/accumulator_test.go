package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

func TestAccumulatorCompute(t *testing.T) {
	acc := NewAccumulator()
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		acc.Update(tracking.NewMetricBatch().Set("loss", v).Set("accuracy", v/10))
	}

	out := acc.Compute()
	assert.Equal(t, []string{"loss", "loss/std", "accuracy", "accuracy/std"}, out.Keys())

	loss, _ := out.Get("loss")
	std, _ := out.Get("loss/std")
	assert.InDelta(t, 5.0, loss, 1e-12)
	// 標本標準偏差: sqrt(32/7)
	assert.InDelta(t, math.Sqrt(32.0/7.0), std, 1e-12)
	assert.Equal(t, 8, acc.Count("loss"))
}

func TestAccumulatorWeighted(t *testing.T) {
	acc := NewAccumulator()
	acc.UpdateWeighted(tracking.NewMetricBatch().Set("loss", 0), 1)
	acc.UpdateWeighted(tracking.NewMetricBatch().Set("loss", 4), 3)

	mean, _ := acc.Compute().Get("loss")
	assert.InDelta(t, 3.0, mean, 1e-12)
}

func TestAccumulatorSingleSample(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("lr", 0.001)

	out := acc.Compute()
	assert.Equal(t, []string{"lr"}, out.Keys())
	assert.False(t, out.Has("lr/std"))
}

func TestAccumulatorSkipsInvalidSamples(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })

	acc := NewAccumulator()
	acc.Add("loss", 1)
	acc.Add("loss", math.NaN())
	acc.Add("loss", math.Inf(1))
	acc.AddWeighted("loss", 3, 0)
	acc.Add("loss", 3)

	assert.Equal(t, 2, acc.Count("loss"))
	mean, _ := acc.Compute().Get("loss")
	assert.InDelta(t, 2.0, mean, 1e-12)

	require.Len(t, warnings, 3)
	var numErr *errors.NumericalInstabilityError
	assert.True(t, errors.As(warnings[0], &numErr))
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("loss", 1)
	acc.Reset()

	assert.Empty(t, acc.Names())
	assert.Equal(t, 0, acc.Compute().Len())

	acc.Add("accuracy", 0.5)
	assert.Equal(t, []string{"accuracy"}, acc.Names())
}

func TestAccumulatorFeedsConflictResolution(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("loss", 1)
	acc.Add("loss", 3)

	resolved := tracking.ResolveConflicts(acc.Compute())
	assert.Equal(t, []string{"loss/std", "loss/val"}, resolved.Keys())
}
