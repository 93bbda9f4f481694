package spectral

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from a mel power
// spectrogram: decibel scaling followed by an orthonormal DCT-II.
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	dbParams        DBParams

	power     *PowerSpectrum
	dctMatrix [][]float64
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int      `json:"num_coefficients"` // Number of MFCC coefficients (default: 20)
	NumMelFilters   int      `json:"num_mel_filters"`  // Mel bands in the input spectrogram (default: 128)
	DB              DBParams `json:"db"`               // Power to decibel conversion
}

// DefaultMFCCParams returns 20 coefficients over 128 mel bands.
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 20,
		NumMelFilters:   128,
		DB:              DefaultDBParams(),
	}
}

// NewMFCC creates a new MFCC computer
func NewMFCC(params MFCCParams) (*MFCC, error) {
	if params.NumCoefficients <= 0 {
		return nil, fmt.Errorf("number of coefficients must be positive: %d", params.NumCoefficients)
	}
	if params.NumMelFilters <= 0 {
		return nil, fmt.Errorf("number of mel filters must be positive: %d", params.NumMelFilters)
	}
	if params.NumCoefficients > params.NumMelFilters {
		return nil, fmt.Errorf("cannot compute %d coefficients from %d mel bands", params.NumCoefficients, params.NumMelFilters)
	}

	mfcc := &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		dbParams:        params.DB,
		power:           NewPowerSpectrum(),
	}
	mfcc.createDCTMatrix()

	return mfcc, nil
}

// ComputeFrames converts a mel power spectrogram (time x mel) into
// coefficient frames (time x coefficient). The decibel floor is taken
// relative to the loudest cell of the whole spectrogram.
func (mfcc *MFCC) ComputeFrames(melSpectrogram [][]float64) ([][]float64, error) {
	if len(melSpectrogram) == 0 {
		return [][]float64{}, nil
	}

	for t, frame := range melSpectrogram {
		if len(frame) != mfcc.numMelFilters {
			return nil, fmt.Errorf("frame %d has %d mel bands, expected %d", t, len(frame), mfcc.numMelFilters)
		}
	}

	logMel := mfcc.power.PowerToDB(melSpectrogram, mfcc.dbParams)

	out := make([][]float64, len(logMel))
	for t, frame := range logMel {
		out[t] = mfcc.applyDCT(frame)
	}

	return out, nil
}

// createDCTMatrix creates the orthonormal DCT-II basis
func (mfcc *MFCC) createDCTMatrix() {
	n := float64(mfcc.numMelFilters)
	mfcc.dctMatrix = make([][]float64, mfcc.numCoefficients)

	for k := 0; k < mfcc.numCoefficients; k++ {
		mfcc.dctMatrix[k] = make([]float64, mfcc.numMelFilters)

		scale := math.Sqrt(2.0 / n)
		if k == 0 {
			scale = math.Sqrt(1.0 / n)
		}

		for i := 0; i < mfcc.numMelFilters; i++ {
			mfcc.dctMatrix[k][i] = scale * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
		}
	}
}

func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	coeffs := make([]float64, mfcc.numCoefficients)

	for k, basis := range mfcc.dctMatrix {
		sum := 0.0
		for i, v := range logMelSpectrum {
			sum += v * basis[i]
		}
		coeffs[k] = sum
	}

	return coeffs
}
