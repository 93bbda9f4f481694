package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// ChromaSTFT projects a magnitude spectrogram onto 12 pitch classes, C first.
//
// Every FFT bin contributes to every pitch class through a Gaussian bump
// centred on the bin's pitch, weighted towards the middle of the audible
// range. The filter bank follows the tuning estimated from the input unless
// a fixed tuning is configured.
type ChromaSTFT struct {
	sampleRate int
	fftSize    int
	params     ChromaParams
	logger     logging.Logger
}

// ChromaParams configures the chroma filter bank.
type ChromaParams struct {
	NumChroma    int      `json:"num_chroma"`    // Pitch classes per octave (default: 12)
	Tuning       *float64 `json:"tuning"`        // Fixed tuning in fractions of a bin; nil estimates it per input
	CenterOctave float64  `json:"center_octave"` // Centre of the octave weighting (default: 5.0)
	OctaveWidth  float64  `json:"octave_width"`  // Gaussian half-width in octaves; <= 0 disables weighting (default: 2.0)
	BaseC        bool     `json:"base_c"`        // Start the filter bank at C instead of A (default: true)
	Resolution   float64  `json:"resolution"`    // Tuning estimation resolution (default: 0.01)
}

// DefaultChromaParams returns the parameters of a standard 12-bin chromagram.
func DefaultChromaParams() ChromaParams {
	return ChromaParams{
		NumChroma:    12,
		CenterOctave: 5.0,
		OctaveWidth:  2.0,
		BaseC:        true,
		Resolution:   0.01,
	}
}

// ChromaResult holds a chromagram and the tuning it was built with.
type ChromaResult struct {
	Chroma [][]float64 `json:"chroma"` // Time x pitch class, each frame scaled to a peak of 1
	Tuning float64     `json:"tuning"` // Tuning offset in fractions of a bin
}

// NewChromaSTFT creates a chromagram calculator for spectrograms of the given FFT size
func NewChromaSTFT(sampleRate, fftSize int, params ChromaParams) (*ChromaSTFT, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if fftSize < 2 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if params.NumChroma <= 0 {
		return nil, fmt.Errorf("number of chroma bins must be positive: %d", params.NumChroma)
	}
	if params.Resolution <= 0 {
		params.Resolution = 0.01
	}

	return &ChromaSTFT{
		sampleRate: sampleRate,
		fftSize:    fftSize,
		params:     params,
		logger: logging.WithFields(logging.Fields{
			"component": "chroma_stft",
		}),
	}, nil
}

// Compute builds a chromagram from a magnitude spectrogram (time x frequency).
func (cs *ChromaSTFT) Compute(spectrogram [][]float64) (*ChromaResult, error) {
	if len(spectrogram) == 0 {
		return &ChromaResult{Chroma: [][]float64{}}, nil
	}
	bins := cs.fftSize/2 + 1
	if len(spectrogram[0]) != bins {
		return nil, fmt.Errorf("spectrogram has %d bins, expected %d", len(spectrogram[0]), bins)
	}

	tuning := 0.0
	if cs.params.Tuning != nil {
		tuning = *cs.params.Tuning
	} else {
		est, err := EstimateTuning(spectrogram, cs.sampleRate, cs.fftSize, cs.params.NumChroma, cs.params.Resolution)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate tuning: %w", err)
		}
		tuning = est
	}

	cs.logger.Debug("Computing chromagram", logging.Fields{
		"frames": len(spectrogram),
		"tuning": tuning,
	})

	fb := cs.FilterBank(tuning)

	chroma := make([][]float64, len(spectrogram))
	for t, frame := range spectrogram {
		out := make([]float64, cs.params.NumChroma)
		for c, weights := range fb {
			sum := 0.0
			for k, w := range weights {
				sum += w * frame[k]
			}
			out[c] = sum
		}
		common.NormalizeMax(out)
		chroma[t] = out
	}

	return &ChromaResult{Chroma: chroma, Tuning: tuning}, nil
}

// FilterBank returns the NumChroma x (fftSize/2+1) projection for a tuning offset.
func (cs *ChromaSTFT) FilterBank(tuning float64) [][]float64 {
	nChroma := cs.params.NumChroma
	nFFT := cs.fftSize
	nc := float64(nChroma)

	// Pitch of every FFT bin in bins above C0. Bin 0 has no pitch and is
	// placed 1.5 octaves below bin 1.
	frqbins := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		freq := float64(k) * float64(cs.sampleRate) / float64(nFFT)
		frqbins[k] = nc * HzToOctaves(freq, tuning, nChroma)
	}
	frqbins[0] = frqbins[1] - 1.5*nc

	binwidth := make([]float64, nFFT)
	for k := 0; k < nFFT-1; k++ {
		binwidth[k] = math.Max(frqbins[k+1]-frqbins[k], 1.0)
	}
	binwidth[nFFT-1] = 1.0

	half := math.Round(nc / 2.0)

	wts := make([][]float64, nChroma)
	for c := range wts {
		wts[c] = make([]float64, nFFT)
		for k := range nFFT {
			d := common.Mod(frqbins[k]-float64(c)+half+10*nc, nc) - half
			z := 2 * d / binwidth[k]
			wts[c][k] = math.Exp(-0.5 * z * z)
		}
	}

	column := make([]float64, nChroma)
	for k := range nFFT {
		for c := range nChroma {
			column[c] = wts[c][k]
		}
		common.NormalizeL2(column)

		octWeight := 1.0
		if cs.params.OctaveWidth > 0 {
			z := (frqbins[k]/nc - cs.params.CenterOctave) / cs.params.OctaveWidth
			octWeight = math.Exp(-0.5 * z * z)
		}

		for c := range nChroma {
			wts[c][k] = column[c] * octWeight
		}
	}

	if cs.params.BaseC {
		shift := 3 * (nChroma / 12)
		rolled := make([][]float64, nChroma)
		for c := range nChroma {
			rolled[c] = wts[(c+shift)%nChroma]
		}
		wts = rolled
	}

	bins := nFFT/2 + 1
	for c := range wts {
		wts[c] = wts[c][:bins:bins]
	}

	return wts
}
