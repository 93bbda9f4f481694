package spectral

import "fmt"

// PadMode selects how a signal is extended before centered framing.
type PadMode int

const (
	// PadConstant extends with zeros.
	PadConstant PadMode = iota
	// PadEdge repeats the first and last samples.
	PadEdge
)

func (m PadMode) String() string {
	switch m {
	case PadConstant:
		return "constant"
	case PadEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// PadCenter extends signal by width samples on both sides.
func PadCenter(signal []float64, width int, mode PadMode) []float64 {
	if width <= 0 {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out
	}

	padded := make([]float64, len(signal)+2*width)
	copy(padded[width:], signal)

	if mode == PadEdge && len(signal) > 0 {
		first, last := signal[0], signal[len(signal)-1]
		for i := range width {
			padded[i] = first
			padded[width+len(signal)+i] = last
		}
	}

	return padded
}

// FrameCount returns the number of full frames of frameLength that fit in a
// signal of n samples with the given hop.
func FrameCount(n, frameLength, hopLength int) int {
	if n < frameLength || hopLength <= 0 {
		return 0
	}
	return 1 + (n-frameLength)/hopLength
}

// CenteredFrameCount is the frame count after padding frameLength/2 samples
// on each side, which is the framing used by every frame-wise feature here.
func CenteredFrameCount(n, frameLength, hopLength int) int {
	return FrameCount(n+2*(frameLength/2), frameLength, hopLength)
}

// Frames slices signal into overlapping frames without copying.
func Frames(signal []float64, frameLength, hopLength int) ([][]float64, error) {
	if frameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive")
	}
	if hopLength <= 0 {
		return nil, fmt.Errorf("hop length must be positive")
	}

	numFrames := FrameCount(len(signal), frameLength, hopLength)
	if numFrames == 0 {
		return nil, fmt.Errorf("signal of %d samples is shorter than frame length %d", len(signal), frameLength)
	}

	frames := make([][]float64, numFrames)
	for i := range numFrames {
		start := i * hopLength
		frames[i] = signal[start : start+frameLength]
	}
	return frames, nil
}
