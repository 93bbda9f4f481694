package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
)

// PitchTrackParams configures parabolic-interpolation pitch tracking.
type PitchTrackParams struct {
	MinFreq   float64 `json:"min_freq"`  // Lowest frequency considered (default: 150)
	MaxFreq   float64 `json:"max_freq"`  // Highest frequency considered, exclusive (default: 4000, capped at Nyquist)
	Threshold float64 `json:"threshold"` // Peaks below Threshold * frame maximum are ignored (default: 0.1)
}

// DefaultPitchTrackParams returns the parameters used for tuning estimation.
func DefaultPitchTrackParams() PitchTrackParams {
	return PitchTrackParams{
		MinFreq:   150.0,
		MaxFreq:   4000.0,
		Threshold: 0.1,
	}
}

// PitchTrack holds interpolated peak frequencies and magnitudes (time x frequency).
// Cells that are not spectral peaks are zero.
type PitchTrack struct {
	Pitches    [][]float64
	Magnitudes [][]float64
}

// TrackPitches locates spectral peaks in a magnitude spectrogram (time x frequency)
// and refines each peak by parabolic interpolation over neighbouring bins.
func TrackPitches(spectrogram [][]float64, sampleRate, fftSize int, params PitchTrackParams) (*PitchTrack, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}

	nyquist := float64(sampleRate) / 2.0
	maxFreq := math.Min(params.MaxFreq, nyquist)
	if params.MaxFreq <= 0 {
		maxFreq = nyquist
	}
	binHz := float64(sampleRate) / float64(fftSize)

	track := &PitchTrack{
		Pitches:    make([][]float64, len(spectrogram)),
		Magnitudes: make([][]float64, len(spectrogram)),
	}

	for t, frame := range spectrogram {
		n := len(frame)
		pitches := make([]float64, n)
		mags := make([]float64, n)
		track.Pitches[t] = pitches
		track.Magnitudes[t] = mags

		if n < 3 {
			continue
		}

		peak := 0.0
		for _, v := range frame {
			peak = math.Max(peak, v)
		}
		ref := params.Threshold * peak

		gated := func(i int) float64 {
			if frame[i] > ref {
				return frame[i]
			}
			return 0
		}

		for f := range n {
			freq := float64(f) * binHz
			if freq < params.MinFreq || freq >= maxFreq {
				continue
			}
			if !isLocalMax(gated, f, n) {
				continue
			}

			shift := parabolicShift(frame, f)
			avg := gradient(frame, f)

			pitches[f] = (float64(f) + shift) * binHz
			mags[f] = frame[f] + 0.5*avg*shift
		}
	}

	return track, nil
}

// isLocalMax treats the sequence as edge-padded: x[i] > x[i-1] and x[i] >= x[i+1].
func isLocalMax(x func(int) float64, i, n int) bool {
	left := x(max(0, i-1))
	right := x(min(n-1, i+1))
	return x(i) > left && x(i) >= right
}

// parabolicShift is the vertex offset of the parabola through bins i-1, i, i+1.
// Edge bins and degenerate fits get no shift.
func parabolicShift(x []float64, i int) float64 {
	if i <= 0 || i >= len(x)-1 {
		return 0
	}
	a := x[i+1] + x[i-1] - 2*x[i]
	b := (x[i+1] - x[i-1]) / 2
	if math.Abs(b) >= math.Abs(a) {
		return 0
	}
	return -b / a
}

// gradient uses central differences inside and one-sided differences at the edges.
func gradient(x []float64, i int) float64 {
	switch {
	case len(x) < 2:
		return 0
	case i == 0:
		return x[1] - x[0]
	case i == len(x)-1:
		return x[i] - x[i-1]
	default:
		return (x[i+1] - x[i-1]) / 2
	}
}

// EstimateTuning estimates the deviation of a recording from A440 tuning, in
// fractions of a bin (semitones for 12 bins per octave), from a magnitude spectrogram.
// Only peaks at least as strong as the median peak vote.
func EstimateTuning(spectrogram [][]float64, sampleRate, fftSize, binsPerOctave int, resolution float64) (float64, error) {
	track, err := TrackPitches(spectrogram, sampleRate, fftSize, DefaultPitchTrackParams())
	if err != nil {
		return 0, err
	}

	var voiced []float64
	for t := range track.Pitches {
		for f, p := range track.Pitches[t] {
			if p > 0 {
				voiced = append(voiced, track.Magnitudes[t][f])
			}
		}
	}

	threshold := 0.0
	if len(voiced) > 0 {
		threshold = common.Median(voiced)
	}

	var selected []float64
	for t := range track.Pitches {
		for f, p := range track.Pitches[t] {
			if p > 0 && track.Magnitudes[t][f] >= threshold {
				selected = append(selected, p)
			}
		}
	}

	return PitchTuning(selected, binsPerOctave, resolution), nil
}

// PitchTuning returns the most common fractional-bin deviation of frequencies
// from the equal-tempered grid, quantised to resolution. With no positive
// frequencies it returns 0.
func PitchTuning(frequencies []float64, binsPerOctave int, resolution float64) float64 {
	if binsPerOctave <= 0 {
		binsPerOctave = 12
	}
	if resolution <= 0 || resolution >= 1 {
		resolution = 0.01
	}

	residuals := make([]float64, 0, len(frequencies))
	for _, f := range frequencies {
		if f <= 0 {
			continue
		}
		r := common.Mod(float64(binsPerOctave)*HzToOctaves(f, 0, binsPerOctave), 1.0)
		if r >= 0.5 {
			r -= 1.0
		}
		residuals = append(residuals, r)
	}
	if len(residuals) == 0 {
		return 0
	}

	edges := common.Linspace(-0.5, 0.5, int(math.Ceil(1.0/resolution))+1)
	counts := make([]float64, 0, len(edges)-1)
	for _, c := range common.Histogram(residuals, edges) {
		counts = append(counts, float64(c))
	}

	return edges[common.ArgMax(counts)]
}

// HzToOctaves converts a frequency to octaves above C0 (A440/16), shifting
// the reference by tuning fractions of a bin.
func HzToOctaves(freq, tuning float64, binsPerOctave int) float64 {
	a440 := 440.0 * math.Pow(2.0, tuning/float64(binsPerOctave))
	return math.Log2(freq / (a440 / 16.0))
}
