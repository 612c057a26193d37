package tracking

// EpochKey is the group of an epoch-scope MetricBatch that holds the
// epoch-level metrics. Other groups (one per loader) are ignored by the
// router.
const EpochKey = "_epoch_"

// MetricBatch is an insertion-ordered mapping from metric name to value.
// Names are unique; order is kept so that conflict resolution is
// deterministic. A batch may also carry named nested groups, which is how
// epoch metrics arrive keyed by loader and EpochKey.
type MetricBatch struct {
	keys      []string
	values    map[string]float64
	groupKeys []string
	groups    map[string]*MetricBatch
}

// NewMetricBatch returns an empty batch.
func NewMetricBatch() *MetricBatch {
	return &MetricBatch{
		values: make(map[string]float64),
		groups: make(map[string]*MetricBatch),
	}
}

// Set stores value under name. An existing name keeps its position.
func (b *MetricBatch) Set(name string, value float64) *MetricBatch {
	if b.values == nil {
		b.values = make(map[string]float64)
	}
	if _, ok := b.values[name]; !ok {
		b.keys = append(b.keys, name)
	}
	b.values[name] = value
	return b
}

// Get returns the value stored under name.
func (b *MetricBatch) Get(name string) (float64, bool) {
	if b == nil {
		return 0, false
	}
	v, ok := b.values[name]
	return v, ok
}

// Has reports whether name is present.
func (b *MetricBatch) Has(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// Delete removes name and reports whether it was present.
func (b *MetricBatch) Delete(name string) bool {
	if !b.Has(name) {
		return false
	}
	delete(b.values, name)
	for i, k := range b.keys {
		if k == name {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the names in insertion order.
func (b *MetricBatch) Keys() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Len returns the number of metrics, not counting groups.
func (b *MetricBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Each calls fn for every metric in insertion order.
func (b *MetricBatch) Each(fn func(name string, value float64)) {
	if b == nil {
		return
	}
	for _, k := range b.keys {
		fn(k, b.values[k])
	}
}

// Map returns the metrics as a plain map.
func (b *MetricBatch) Map() map[string]float64 {
	out := make(map[string]float64, b.Len())
	b.Each(func(name string, value float64) {
		out[name] = value
	})
	return out
}

// SetGroup attaches a nested batch under name.
func (b *MetricBatch) SetGroup(name string, group *MetricBatch) *MetricBatch {
	if b.groups == nil {
		b.groups = make(map[string]*MetricBatch)
	}
	if _, ok := b.groups[name]; !ok {
		b.groupKeys = append(b.groupKeys, name)
	}
	b.groups[name] = group
	return b
}

// Group returns the nested batch stored under name, or nil.
func (b *MetricBatch) Group(name string) *MetricBatch {
	if b == nil {
		return nil
	}
	return b.groups[name]
}

// GroupNames returns the group names in insertion order.
func (b *MetricBatch) GroupNames() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.groupKeys))
	copy(out, b.groupKeys)
	return out
}

// Clone returns a deep copy including groups.
func (b *MetricBatch) Clone() *MetricBatch {
	out := b.flatClone()
	if b == nil {
		return out
	}
	for _, name := range b.groupKeys {
		out.SetGroup(name, b.groups[name].Clone())
	}
	return out
}

func (b *MetricBatch) flatClone() *MetricBatch {
	out := NewMetricBatch()
	b.Each(func(name string, value float64) {
		out.Set(name, value)
	})
	return out
}
