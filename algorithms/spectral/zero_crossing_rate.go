package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ZeroCrossingRate calculates the fraction of sign changes per frame.
// High ZCR indicates fricatives/unvoiced speech, low ZCR indicates voiced speech.
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
	threshold float64
	center    bool
}

// ZCRParams configures framed zero crossing rate.
type ZCRParams struct {
	FrameSize int     `json:"frame_size"` // Samples per frame (default: 2048)
	HopSize   int     `json:"hop_size"`   // Samples between frame starts (default: 512)
	Threshold float64 `json:"threshold"`  // Samples with |x| <= Threshold count as zero
	Center    bool    `json:"center"`     // Edge-pad FrameSize/2 on both sides
}

// DefaultZCRParams returns the framing shared with the spectral features.
func DefaultZCRParams() ZCRParams {
	return ZCRParams{
		FrameSize: 2048,
		HopSize:   512,
		Threshold: 1e-10,
		Center:    true,
	}
}

// ZCRStats summarises a ZCR track.
type ZCRStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// NewZeroCrossingRate creates a new zero crossing rate calculator
func NewZeroCrossingRate(params ZCRParams) (*ZeroCrossingRate, error) {
	if params.FrameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive: %d", params.FrameSize)
	}
	if params.HopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive: %d", params.HopSize)
	}
	if params.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative: %g", params.Threshold)
	}

	return &ZeroCrossingRate{
		frameSize: params.FrameSize,
		hopSize:   params.HopSize,
		threshold: params.Threshold,
		center:    params.Center,
	}, nil
}

// Compute returns the number of sign changes in frame divided by its length.
// Zero is treated as positive, after snapping near-silent samples to zero.
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	prev := zcr.negative(frame[0])
	for i := 1; i < len(frame); i++ {
		cur := zcr.negative(frame[i])
		if cur != prev {
			crossings++
		}
		prev = cur
	}

	return float64(crossings) / float64(len(frame))
}

func (zcr *ZeroCrossingRate) negative(x float64) bool {
	if math.Abs(x) <= zcr.threshold {
		return false
	}
	return math.Signbit(x)
}

// ComputeFrames calculates ZCR for overlapping frames of a signal
func (zcr *ZeroCrossingRate) ComputeFrames(signal []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	input := signal
	if zcr.center {
		input = PadCenter(signal, zcr.frameSize/2, PadEdge)
	}

	frames, err := Frames(input, zcr.frameSize, zcr.hopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to frame signal: %w", err)
	}

	values := make([]float64, len(frames))
	for i, frame := range frames {
		values[i] = zcr.Compute(frame)
	}

	return values, nil
}

// Stats summarises a ZCR track.
func (zcr *ZeroCrossingRate) Stats(values []float64) ZCRStats {
	if len(values) == 0 {
		return ZCRStats{}
	}

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	return ZCRStats{Mean: mean, StdDev: std, Min: lo, Max: hi}
}
