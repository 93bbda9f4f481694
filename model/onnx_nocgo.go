//go:build !cgo

package model

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-emotion/emotion"
)

// ONNXScorer is unavailable in builds without cgo.
type ONNXScorer struct{}

// InitRuntime always fails without cgo.
func InitRuntime(libraryPath string) error {
	return fmt.Errorf("%w: onnxruntime requires a cgo build", emotion.ErrModelUnavailable)
}

// DestroyRuntime is a no-op without cgo.
func DestroyRuntime() error {
	return nil
}

// NewONNXScorer always fails without cgo.
func NewONNXScorer(cfg ONNXConfig) (*ONNXScorer, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	return nil, InitRuntime(cfg.LibraryPath)
}

// Score implements Scorer.
func (s *ONNXScorer) Score(ctx context.Context, input []float32) ([]float32, error) {
	return nil, fmt.Errorf("%w: onnxruntime requires a cgo build", emotion.ErrModelUnavailable)
}

// Close implements Scorer.
func (s *ONNXScorer) Close() error {
	return nil
}
