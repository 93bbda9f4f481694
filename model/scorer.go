// Package model runs the pretrained emotion network. The network is opaque:
// it maps a feature vector of features.VectorLength values to one score per
// emotion label.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/features"
)

// Scorer runs the forward pass. Implementations must be safe for concurrent
// use once constructed.
type Scorer interface {
	// Score returns emotion.NumLabels scores ordered like emotion.Labels.
	Score(ctx context.Context, input []float32) ([]float32, error)

	// Close releases the model. The scorer must not be used afterwards.
	Close() error
}

// CheckInput rejects feature vectors the network cannot consume.
func CheckInput(input []float32) error {
	if len(input) != features.VectorLength {
		return fmt.Errorf("%w: model expects %d features, got %d", emotion.ErrShapeMismatch, features.VectorLength, len(input))
	}
	return nil
}

// CheckOutput rejects score vectors that do not cover the label set.
func CheckOutput(scores []float32) error {
	if len(scores) != emotion.NumLabels {
		return fmt.Errorf("%w: model returned %d scores, expected %d", emotion.ErrShapeMismatch, len(scores), emotion.NumLabels)
	}
	return nil
}

// StaticScorer returns the same scores for every input. It stands in for the
// network in dry runs.
type StaticScorer struct {
	scores []float32
}

// NewStaticScorer creates a scorer that always returns scores.
func NewStaticScorer(scores []float32) (*StaticScorer, error) {
	if err := CheckOutput(scores); err != nil {
		return nil, err
	}
	s := make([]float32, len(scores))
	copy(s, scores)
	return &StaticScorer{scores: s}, nil
}

// Score implements Scorer.
func (s *StaticScorer) Score(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckInput(input); err != nil {
		return nil, err
	}
	out := make([]float32, len(s.scores))
	copy(out, s.scores)
	return out, nil
}

// Close implements Scorer.
func (s *StaticScorer) Close() error {
	return nil
}

// FuncScorer adapts a function to Scorer and records every input it sees.
type FuncScorer struct {
	// ScoreFunc is called for every input that passes the shape check.
	ScoreFunc func(ctx context.Context, input []float32) ([]float32, error)

	mu     sync.Mutex
	calls  [][]float32
	closed bool
}

// NewFuncScorer wraps fn.
func NewFuncScorer(fn func(ctx context.Context, input []float32) ([]float32, error)) *FuncScorer {
	return &FuncScorer{ScoreFunc: fn}
}

// Score implements Scorer.
func (f *FuncScorer) Score(ctx context.Context, input []float32) ([]float32, error) {
	if err := CheckInput(input); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: scorer is closed", emotion.ErrModelUnavailable)
	}
	inputCopy := make([]float32, len(input))
	copy(inputCopy, input)
	f.calls = append(f.calls, inputCopy)
	f.mu.Unlock()

	if f.ScoreFunc == nil {
		return make([]float32, emotion.NumLabels), nil
	}

	scores, err := f.ScoreFunc(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := CheckOutput(scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// Calls returns a copy of every input scored so far.
func (f *FuncScorer) Calls() [][]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]float32, len(f.calls))
	copy(out, f.calls)
	return out
}

// Close implements Scorer.
func (f *FuncScorer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
