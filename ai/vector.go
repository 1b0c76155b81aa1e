package ai

// ToFloat64 widens an embedding returned by an Embedder. Documents store and
// compare embeddings in float64.
func ToFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
