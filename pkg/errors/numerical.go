package errors

import (
	"math"
)

// CheckScalar checks a single metric value for NaN or Inf.
func CheckScalar(operation string, value float64, step int64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, step)
	}
	return nil
}

// CheckValues checks values for NaN or Inf and reports every offending value.
func CheckValues(operation string, values []float64, step int64) error {
	var unstable []float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			unstable = append(unstable, v)
			if len(unstable) >= 10 {
				// Limit the number of collected values for error message
				break
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, step)
	}
	return nil
}
