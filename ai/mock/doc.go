// Package mock provides test doubles for the ai interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash of
// the input text, so tests get stable similarity scores without a model.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.Dim = 8
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{1, 0}, nil
//	}
//	count := embedder.CallCount()
package mock
