// Package features turns a mono sample buffer into the fixed-length vector
// the emotion model consumes: zero-crossing rate, chroma, MFCC, RMS energy and
// mel spectrogram, each averaged over time.
package features

import (
	"fmt"
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-emotion/algorithms/chroma"
	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emotion/algorithms/temporal"
	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"gonum.org/v1/gonum/floats"
)

// Extractor computes feature vectors. It holds no per-call state and is safe
// for concurrent use.
type Extractor struct {
	params Params
	logger logging.Logger

	stft   *spectral.STFT
	power  *spectral.PowerSpectrum
	window *windowing.Hann
	zcr    *spectral.ZeroCrossingRate
	energy *temporal.Energy
	mfcc   *spectral.MFCC

	mu       sync.Mutex
	melBanks map[int]*spectral.MelSpectrogram
}

// NewExtractor validates params and prepares the rate-independent stages.
func NewExtractor(params Params) (*Extractor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	zcr, err := spectral.NewZeroCrossingRate(spectral.ZCRParams{
		FrameSize: params.FFTSize,
		HopSize:   params.HopSize,
		Threshold: 1e-10,
		Center:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	energy, err := temporal.NewEnergy(temporal.EnergyParams{
		FrameSize: params.FFTSize,
		HopSize:   params.HopSize,
		Center:    true,
		PadMode:   spectral.PadConstant,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	mfccParams := spectral.DefaultMFCCParams()
	mfccParams.NumCoefficients = params.NumMFCC
	mfccParams.NumMelFilters = params.NumMels
	mfccParams.DB.TopDB = params.TopDB
	mfcc, err := spectral.NewMFCC(mfccParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return &Extractor{
		params: params,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
		stft:     spectral.NewSTFT(),
		power:    spectral.NewPowerSpectrum(),
		window:   windowing.NewPeriodicHann(params.FFTSize),
		zcr:      zcr,
		energy:   energy,
		mfcc:     mfcc,
		melBanks: make(map[int]*spectral.MelSpectrogram),
	}, nil
}

// Params returns the analysis parameters.
func (e *Extractor) Params() Params {
	return e.params
}

// Extract returns the VectorLength feature vector for a mono buffer.
func (e *Extractor) Extract(samples []float64, sampleRate int) ([]float64, error) {
	f, err := e.ExtractFeatures(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	return f.Vector(), nil
}

// ExtractFeatures returns the per-feature breakdown for a mono buffer.
func (e *Extractor) ExtractFeatures(samples []float64, sampleRate int) (*Features, error) {
	logger := e.logger.WithFields(logging.Fields{
		"function":    "ExtractFeatures",
		"samples":     len(samples),
		"sample_rate": sampleRate,
	})

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to analyse", emotion.ErrEmptyAudio)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidParams, sampleRate)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at index %d", emotion.ErrDecode, i)
		}
	}

	mel, err := e.melBank(sampleRate)
	if err != nil {
		return nil, err
	}

	zcrFrames, err := e.zcr.ComputeFrames(samples)
	if err != nil {
		return nil, fmt.Errorf("zero crossing rate: %w", err)
	}

	stftParams := spectral.STFTParams{
		WindowSize: e.params.FFTSize,
		HopSize:    e.params.HopSize,
		Center:     true,
		PadMode:    spectral.PadConstant,
	}
	stftResult, err := e.stft.Compute(samples, sampleRate, stftParams, e.window)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}
	power := e.power.ComputeFromSTFT(stftResult)

	cs, err := chroma.NewChromaSTFT(sampleRate, e.params.FFTSize, e.params.chromaParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	chromaResult, err := cs.Compute(stftResult.Magnitude)
	if err != nil {
		return nil, fmt.Errorf("chroma: %w", err)
	}

	melFrames, err := mel.Compute(power)
	if err != nil {
		return nil, fmt.Errorf("mel spectrogram: %w", err)
	}

	mfccFrames, err := e.mfcc.ComputeFrames(melFrames)
	if err != nil {
		return nil, fmt.Errorf("mfcc: %w", err)
	}

	rmsFrames, err := e.energy.ComputeRMS(samples)
	if err != nil {
		return nil, fmt.Errorf("rms: %w", err)
	}

	frames := stftResult.TimeFrames
	if len(zcrFrames) != frames || len(rmsFrames) != frames {
		return nil, fmt.Errorf("frame count mismatch: stft=%d zcr=%d rms=%d", frames, len(zcrFrames), len(rmsFrames))
	}

	f := &Features{
		ZeroCrossingRate: []float64{floats.Sum(zcrFrames) / float64(frames)},
		Chroma:           meanOverFrames(chromaResult.Chroma, e.params.NumChroma),
		MFCC:             meanOverFrames(mfccFrames, e.params.NumMFCC),
		RMS:              []float64{floats.Sum(rmsFrames) / float64(frames)},
		MelSpectrogram:   meanOverFrames(melFrames, e.params.NumMels),
		Frames:           frames,
		SampleRate:       sampleRate,
		Tuning:           chromaResult.Tuning,
		Descriptors:      describe(stftResult, power, rmsFrames),
	}
	f.Descriptors.ZeroCrossing = e.zcr.Stats(zcrFrames)

	logger.Debug("Extracted features", logging.Fields{
		"frames": frames,
		"tuning": chromaResult.Tuning,
	})

	return f, nil
}

// rolloffPercent is the share of spectral magnitude Descriptors.Rolloff marks.
const rolloffPercent = 0.85

// describe averages the spectral shape descriptors over every frame.
func describe(stftResult *spectral.STFTResult, power [][]float64, rms []float64) Descriptors {
	freqs := spectral.BinFrequencies(stftResult.SampleRate, stftResult.WindowSize)
	frames := len(stftResult.Magnitude)
	if frames == 0 {
		return Descriptors{}
	}

	d := Descriptors{SilenceRatio: temporal.SilenceRatio(rms, temporal.DefaultSilenceTopDB)}
	for t, spectrum := range stftResult.Magnitude {
		centroid := spectral.Centroid(spectrum, freqs)
		d.Centroid += centroid
		d.Bandwidth += spectral.Bandwidth(spectrum, freqs, centroid)
		d.Rolloff += spectral.Rolloff(spectrum, freqs, rolloffPercent)
		d.Flatness += spectral.Flatness(power[t])
	}

	n := float64(frames)
	d.Centroid /= n
	d.Bandwidth /= n
	d.Rolloff /= n
	d.Flatness /= n
	return d
}

// melBank returns the cached mel filter bank for a sample rate.
func (e *Extractor) melBank(sampleRate int) (*spectral.MelSpectrogram, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mel, ok := e.melBanks[sampleRate]; ok {
		return mel, nil
	}

	mel, err := spectral.NewMelSpectrogram(sampleRate, e.params.FFTSize, e.params.NumMels, e.params.MinFreq, e.params.maxFreq(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	e.melBanks[sampleRate] = mel
	return mel, nil
}

// meanOverFrames averages a time x coefficient matrix along time, summing
// frames in order so the result is reproducible.
func meanOverFrames(frames [][]float64, width int) []float64 {
	mean := make([]float64, width)
	if len(frames) == 0 {
		return mean
	}
	for _, frame := range frames {
		floats.Add(mean, frame)
	}
	floats.Scale(1.0/float64(len(frames)), mean)
	return mean
}
