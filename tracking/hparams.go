package tracking

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Stringify converts a hyperparameter mapping into values every backend can
// store: strings, bools, numbers, times and nested maps of those. Anything
// else is formatted with %v and nil becomes "null".
func Stringify(hparams map[string]any) map[string]any {
	out := make(map[string]any, len(hparams))
	for k, v := range hparams {
		out[k] = stringifyValue(v)
	}
	return out
}

func stringifyValue(v any) any {
	switch x := v.(type) {
	case nil:
		return "null"
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return x
	case map[string]any:
		return Stringify(x)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			out[k.String()] = stringifyValue(rv.MapIndex(k).Interface())
		}
		return out
	}
	return fmt.Sprintf("%v", v)
}
