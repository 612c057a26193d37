package experiment

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

// Params reads typed runner parameters with defaults.
type Params map[string]any

// Int returns key as an int. Integral floats and numeric strings, as
// produced by environment interpolation, are accepted.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, nil
		}
	}
	return def, errors.NewValidationError(key, "must be an integer", v)
}

// Float returns key as a float64.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, nil
		}
	}
	return def, errors.NewValidationError(key, "must be a number", v)
}

// String returns key as a string.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return def, errors.NewValidationError(key, "must be a string", v)
}
