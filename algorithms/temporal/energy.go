package temporal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
	"gonum.org/v1/gonum/floats"
)

// Energy computes frame-wise root-mean-square energy
type Energy struct {
	frameSize int
	hopSize   int
	center    bool
	padMode   spectral.PadMode
}

// EnergyParams configures framing for RMS energy.
type EnergyParams struct {
	FrameSize int              `json:"frame_size"` // Samples per frame (default: 2048)
	HopSize   int              `json:"hop_size"`   // Samples between frame starts (default: 512)
	Center    bool             `json:"center"`     // Pad FrameSize/2 on both sides
	PadMode   spectral.PadMode `json:"pad_mode"`   // Padding used when Center is set (default: constant)
}

// DefaultEnergyParams returns the framing shared with the spectral features.
func DefaultEnergyParams() EnergyParams {
	return EnergyParams{
		FrameSize: 2048,
		HopSize:   512,
		Center:    true,
		PadMode:   spectral.PadConstant,
	}
}

// NewEnergy creates a new energy calculator
func NewEnergy(params EnergyParams) (*Energy, error) {
	if params.FrameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive: %d", params.FrameSize)
	}
	if params.HopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive: %d", params.HopSize)
	}

	return &Energy{
		frameSize: params.FrameSize,
		hopSize:   params.HopSize,
		center:    params.Center,
		padMode:   params.PadMode,
	}, nil
}

// ComputeRMS calculates sqrt(mean(x^2)) for overlapping frames.
func (e *Energy) ComputeRMS(signal []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	input := signal
	if e.center {
		input = spectral.PadCenter(signal, e.frameSize/2, e.padMode)
	}

	frames, err := spectral.Frames(input, e.frameSize, e.hopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to frame signal: %w", err)
	}

	energies := make([]float64, len(frames))
	for i, frame := range frames {
		energies[i] = FrameRMS(frame)
	}

	return energies, nil
}

// FrameRMS is the root-mean-square amplitude of a single frame.
func FrameRMS(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(frame, frame) / float64(len(frame)))
}
