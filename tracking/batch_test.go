package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricBatchOrder(t *testing.T) {
	b := NewMetricBatch().Set("b", 2).Set("a", 1).Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, b.Keys())
	v, ok := b.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	assert.True(t, b.Delete("b"))
	assert.False(t, b.Delete("b"))
	assert.Equal(t, []string{"a"}, b.Keys())
}

func TestMetricBatchZeroValue(t *testing.T) {
	var b MetricBatch
	b.Set("x", 1).SetGroup("g", NewMetricBatch())

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []string{"g"}, b.GroupNames())
}

func TestMetricBatchClone(t *testing.T) {
	b := NewMetricBatch().Set("x", 1)
	b.SetGroup(EpochKey, NewMetricBatch().Set("loss", 0.5))

	c := b.Clone()
	c.Set("y", 2)
	c.Group(EpochKey).Set("acc", 0.9)

	assert.Equal(t, []string{"x"}, b.Keys())
	assert.Equal(t, []string{"loss"}, b.Group(EpochKey).Keys())
	assert.Equal(t, map[string]float64{"x": 1, "y": 2}, c.Map())
}

func TestMetricBatchNilReaders(t *testing.T) {
	var b *MetricBatch

	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Keys())
	assert.Nil(t, b.Group(EpochKey))
	assert.False(t, b.Has("x"))
	assert.Empty(t, b.Map())
}
