package features

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-emotion/algorithms/chroma"
)

// ErrInvalidParams marks analysis parameters or sample rates the extractor cannot use.
var ErrInvalidParams = errors.New("invalid feature parameters")

// Params contains the analysis parameters shared by every feature.
type Params struct {
	FFTSize   int     `json:"fft_size" toml:"fft_size"`     // FFT size and frame length (default: 2048)
	HopSize   int     `json:"hop_size" toml:"hop_size"`     // Samples between frames (default: 512)
	NumMels   int     `json:"num_mels" toml:"num_mels"`     // Mel bands (default: 128)
	NumMFCC   int     `json:"num_mfcc" toml:"num_mfcc"`     // Cepstral coefficients (default: 20)
	NumChroma int     `json:"num_chroma" toml:"num_chroma"` // Pitch classes (default: 12)
	MinFreq   float64 `json:"min_freq" toml:"min_freq"`     // Lowest mel filter edge in Hz (default: 0)
	MaxFreq   float64 `json:"max_freq" toml:"max_freq"`     // Highest mel filter edge in Hz; 0 means Nyquist
	TopDB     float64 `json:"top_db" toml:"top_db"`         // MFCC dynamic range below the peak (default: 80)

	// Tuning fixes the chroma tuning offset in fractions of a semitone.
	// Nil estimates it from each input.
	Tuning *float64 `json:"tuning,omitempty" toml:"tuning,omitempty"`
}

// DefaultParams returns the parameters the emotion model was trained with.
func DefaultParams() Params {
	return Params{
		FFTSize:   2048,
		HopSize:   512,
		NumMels:   128,
		NumMFCC:   20,
		NumChroma: 12,
		MinFreq:   0,
		MaxFreq:   0,
		TopDB:     80,
	}
}

// Validate checks the parameters independently of any sample rate.
func (p Params) Validate() error {
	switch {
	case p.FFTSize < 2:
		return fmt.Errorf("%w: fft_size must be at least 2, got %d", ErrInvalidParams, p.FFTSize)
	case p.HopSize <= 0:
		return fmt.Errorf("%w: hop_size must be positive, got %d", ErrInvalidParams, p.HopSize)
	case p.NumMels <= 0:
		return fmt.Errorf("%w: num_mels must be positive, got %d", ErrInvalidParams, p.NumMels)
	case p.NumMFCC <= 0 || p.NumMFCC > p.NumMels:
		return fmt.Errorf("%w: num_mfcc must be in [1, %d], got %d", ErrInvalidParams, p.NumMels, p.NumMFCC)
	case p.NumChroma <= 0:
		return fmt.Errorf("%w: num_chroma must be positive, got %d", ErrInvalidParams, p.NumChroma)
	case p.MinFreq < 0:
		return fmt.Errorf("%w: min_freq must not be negative, got %g", ErrInvalidParams, p.MinFreq)
	case p.MaxFreq < 0:
		return fmt.Errorf("%w: max_freq must not be negative, got %g", ErrInvalidParams, p.MaxFreq)
	case p.MaxFreq > 0 && p.MaxFreq <= p.MinFreq:
		return fmt.Errorf("%w: max_freq %g must exceed min_freq %g", ErrInvalidParams, p.MaxFreq, p.MinFreq)
	case p.TopDB < 0:
		return fmt.Errorf("%w: top_db must not be negative, got %g", ErrInvalidParams, p.TopDB)
	}
	return nil
}

// Length is the size of the concatenated feature vector before resizing.
func (p Params) Length() int {
	return 1 + p.NumChroma + p.NumMFCC + 1 + p.NumMels
}

func (p Params) maxFreq(sampleRate int) float64 {
	if p.MaxFreq > 0 {
		return p.MaxFreq
	}
	return float64(sampleRate) / 2.0
}

func (p Params) chromaParams() chroma.ChromaParams {
	cp := chroma.DefaultChromaParams()
	cp.NumChroma = p.NumChroma
	cp.Tuning = p.Tuning
	return cp
}
