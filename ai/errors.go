package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates a vector length differs from the expected one.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates the service returned no vector.
	ErrEmptyEmbedding = errors.New("embedding service returned no vector")
)

// CheckDimensions returns ErrDimensionMismatch when want is positive and the
// vector has a different length.
func CheckDimensions(vec []float32, want int) error {
	if len(vec) == 0 {
		return ErrEmptyEmbedding
	}
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
