package model

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-emotion/emotion"
)

// Backend names a Scorer implementation.
type Backend string

const (
	BackendONNX   Backend = "onnx"
	BackendStatic Backend = "static"
)

// Config selects and configures the scorer.
type Config struct {
	Backend        Backend   `json:"backend" toml:"backend"`                 // "onnx" or "static"
	Path           string    `json:"path" toml:"path"`                       // ONNX model file
	RuntimeLibrary string    `json:"runtime_library" toml:"runtime_library"` // libonnxruntime path; empty searches common locations
	InputName      string    `json:"input_name" toml:"input_name"`           // Empty uses the model's first input
	OutputName     string    `json:"output_name" toml:"output_name"`         // Empty uses the model's first output
	Threads        int       `json:"threads" toml:"threads"`                 // Intra-op threads, 0 lets the runtime decide
	Normalize      string    `json:"normalize" toml:"normalize"`             // "auto", "softmax" or "none"
	StaticScores   []float32 `json:"static_scores,omitempty" toml:"static_scores,omitempty"`
}

// DefaultConfig expects an exported model next to the binary.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendONNX,
		Path:      "models/emotion.onnx",
		Normalize: string(emotion.NormalizeAuto),
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendONNX:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("model.path is required for the onnx backend")
		}
	case BackendStatic:
		if len(c.StaticScores) != 0 && len(c.StaticScores) != emotion.NumLabels {
			return fmt.Errorf("model.static_scores must have %d values, got %d", emotion.NumLabels, len(c.StaticScores))
		}
	default:
		return fmt.Errorf("unknown model backend %q", c.Backend)
	}
	if c.Threads < 0 {
		return fmt.Errorf("model.threads must not be negative")
	}
	if _, err := emotion.ParseNormalizeMode(c.Normalize); err != nil {
		return fmt.Errorf("model.normalize: %w", err)
	}
	return nil
}

// NewScorer builds the scorer selected by cfg. Load failures are reported as
// emotion.ErrModelUnavailable.
func NewScorer(cfg Config) (Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", emotion.ErrModelUnavailable, err)
	}

	switch cfg.Backend {
	case BackendStatic:
		scores := cfg.StaticScores
		if len(scores) == 0 {
			scores = make([]float32, emotion.NumLabels)
			for i := range scores {
				scores[i] = 1.0 / float32(emotion.NumLabels)
			}
		}
		scorer, err := NewStaticScorer(scores)
		if err != nil {
			return nil, err
		}
		return scorer, nil
	default:
		scorer, err := NewONNXScorer(ONNXConfig{
			ModelPath:      cfg.Path,
			LibraryPath:    cfg.RuntimeLibrary,
			InputName:      cfg.InputName,
			OutputName:     cfg.OutputName,
			IntraOpThreads: cfg.Threads,
		})
		if err != nil {
			return nil, err
		}
		return scorer, nil
	}
}
