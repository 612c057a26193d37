package tracking

import "strings"

const (
	stdSuffix      = "/std"
	valSuffix      = "/val"
	conflictSuffix = "_val"
)

// ResolveConflicts returns a copy of metrics in which no name is a literal
// string prefix of another. It runs two passes over the current key set, in
// insertion order:
//
//  1. For every "<name>/std" without a "<name>/val" sibling, a bare "<name>"
//     is renamed to "<name>/val".
//  2. Every name that prefixes some other name is renamed to "<name>_val".
//     A name is renamed at most once.
//
// Renamed entries move to the end of the order. Groups are not copied.
func ResolveConflicts(metrics *MetricBatch) *MetricBatch {
	out := metrics.flatClone()

	for _, k := range out.Keys() {
		if !strings.HasSuffix(k, stdSuffix) {
			continue
		}
		stripped := strings.TrimSuffix(k, stdSuffix)
		valKey := stripped + valSuffix
		if out.Has(valKey) {
			continue
		}
		if v, ok := out.Get(stripped); ok {
			out.Delete(stripped)
			out.Set(valKey, v)
		}
	}

	keys := out.Keys()
	flagged := make(map[string]bool)
	var conflicts []string
	for _, k := range keys {
		for _, j := range keys {
			if j != k && strings.HasPrefix(j, k) && !flagged[k] {
				flagged[k] = true
				conflicts = append(conflicts, k)
			}
		}
	}

	for _, k := range conflicts {
		v, _ := out.Get(k)
		out.Delete(k)
		out.Set(k+conflictSuffix, v)
	}
	return out
}
