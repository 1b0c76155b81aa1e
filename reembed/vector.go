package reembed

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += val * val
	}
	magnitude := math.Sqrt(sum)

	result := make([]float64, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
