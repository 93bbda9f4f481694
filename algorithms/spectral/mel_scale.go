package spectral

import (
	"fmt"
	"math"
)

// Slaney (Auditory Toolbox) mel scale constants: linear below 1 kHz,
// logarithmic above.
const (
	slaneyFSp       = 200.0 / 3.0
	slaneyMinLogHz  = 1000.0
	slaneyMinLogMel = slaneyMinLogHz / slaneyFSp
)

var slaneyLogStep = math.Log(6.4) / 27.0

// MelScale converts between Hz and Slaney mel
type MelScale struct{}

// NewMelScale creates a mel scale converter using the Slaney formula
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if hz >= slaneyMinLogHz {
		return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
	}
	return hz / slaneyFSp
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if mel >= slaneyMinLogMel {
		return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
	}
	return slaneyFSp * mel
}

// MelFrequencies returns n frequencies evenly spaced on the mel scale between lowFreq and highFreq.
func (ms *MelScale) MelFrequencies(n int, lowFreq, highFreq float64) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{ms.MelToHz(ms.HzToMel(lowFreq))}
	}

	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)
	step := (highMel - lowMel) / float64(n-1)

	freqs := make([]float64, n)
	for i := range n {
		freqs[i] = ms.MelToHz(lowMel + float64(i)*step)
	}
	freqs[n-1] = ms.MelToHz(highMel)
	return freqs
}

// FFTFrequencies returns the centre frequency of each of the fftSize/2+1 bins.
func FFTFrequencies(sampleRate, fftSize int) []float64 {
	bins := fftSize/2 + 1
	freqs := make([]float64, bins)
	for k := range bins {
		freqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}
	return freqs
}

// CreateMelFilterBank creates a numFilters x (fftSize/2+1) bank of triangular
// filters. Each filter is scaled by 2/(upper-lower) so that it has roughly
// constant energy per channel (Slaney area normalisation).
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) ([][]float64, error) {
	if numFilters <= 0 {
		return nil, fmt.Errorf("number of mel filters must be positive: %d", numFilters)
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if highFreq <= 0 {
		highFreq = float64(sampleRate) / 2.0
	}
	if lowFreq < 0 || lowFreq >= highFreq {
		return nil, fmt.Errorf("invalid frequency range [%g, %g]", lowFreq, highFreq)
	}

	fftFreqs := FFTFrequencies(sampleRate, fftSize)
	melF := ms.MelFrequencies(numFilters+2, lowFreq, highFreq)

	fdiff := make([]float64, len(melF)-1)
	for i := range fdiff {
		fdiff[i] = melF[i+1] - melF[i]
	}

	filterBank := make([][]float64, numFilters)
	for m := range numFilters {
		weights := make([]float64, len(fftFreqs))
		enorm := 2.0 / (melF[m+2] - melF[m])

		for k, f := range fftFreqs {
			lower := (f - melF[m]) / fdiff[m]
			upper := (melF[m+2] - f) / fdiff[m+1]
			w := math.Max(0, math.Min(lower, upper))
			weights[k] = w * enorm
		}
		filterBank[m] = weights
	}

	return filterBank, nil
}

// ApplyFilterBank applies the filter bank to one power spectrum frame
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))

	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}

// MelSpectrogram computes mel-band energies for a power spectrogram (time x frequency).
type MelSpectrogram struct {
	melScale   *MelScale
	filterBank [][]float64
	sampleRate int
	fftSize    int
}

// NewMelSpectrogram builds the filter bank once for repeated use.
func NewMelSpectrogram(sampleRate, fftSize, numMels int, lowFreq, highFreq float64) (*MelSpectrogram, error) {
	ms := NewMelScale()
	fb, err := ms.CreateMelFilterBank(numMels, fftSize, sampleRate, lowFreq, highFreq)
	if err != nil {
		return nil, fmt.Errorf("failed to create mel filter bank: %w", err)
	}
	return &MelSpectrogram{
		melScale:   ms,
		filterBank: fb,
		sampleRate: sampleRate,
		fftSize:    fftSize,
	}, nil
}

// Compute applies the filter bank to every frame.
func (m *MelSpectrogram) Compute(powerSpectrogram [][]float64) ([][]float64, error) {
	if len(powerSpectrogram) == 0 {
		return [][]float64{}, nil
	}
	if want := m.fftSize/2 + 1; len(powerSpectrogram[0]) != want {
		return nil, fmt.Errorf("spectrogram has %d bins, filter bank expects %d", len(powerSpectrogram[0]), want)
	}

	out := make([][]float64, len(powerSpectrogram))
	for t, frame := range powerSpectrogram {
		out[t] = m.melScale.ApplyFilterBank(frame, m.filterBank)
	}
	return out, nil
}
