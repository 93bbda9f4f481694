package spectral

import (
	"math"
)

// PowerSpectrum provides power spectral density computation
type PowerSpectrum struct{}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute computes the power spectrum from a magnitude spectrum
func (ps *PowerSpectrum) Compute(magnitudeSpectrum []float64) []float64 {
	if len(magnitudeSpectrum) == 0 {
		return []float64{}
	}

	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}

	return power
}

// ComputeFromSTFT computes the power spectrogram (time x frequency) from an STFT result
func (ps *PowerSpectrum) ComputeFromSTFT(stftResult *STFTResult) [][]float64 {
	power := make([][]float64, stftResult.TimeFrames)

	for t := 0; t < stftResult.TimeFrames; t++ {
		power[t] = ps.Compute(stftResult.Magnitude[t])
	}

	return power
}

// DBParams controls power-to-decibel conversion.
type DBParams struct {
	Ref   float64 `json:"ref"`    // Reference power mapped to 0 dB
	Amin  float64 `json:"amin"`   // Floor applied before the logarithm
	TopDB float64 `json:"top_db"` // Dynamic range kept below the peak; <= 0 disables clipping
}

// DefaultDBParams returns ref=1, amin=1e-10, top_db=80.
func DefaultDBParams() DBParams {
	return DBParams{Ref: 1.0, Amin: 1e-10, TopDB: 80.0}
}

// PowerToDB converts a power matrix to decibels. With TopDB > 0 every value is
// clipped to at least (global max - TopDB).
func (ps *PowerSpectrum) PowerToDB(power [][]float64, params DBParams) [][]float64 {
	if params.Amin <= 0 {
		params.Amin = 1e-10
	}
	refDB := 10.0 * math.Log10(math.Max(params.Amin, math.Abs(params.Ref)))

	out := make([][]float64, len(power))
	peak := math.Inf(-1)
	for t, row := range power {
		out[t] = make([]float64, len(row))
		for f, p := range row {
			db := 10.0*math.Log10(math.Max(params.Amin, p)) - refDB
			out[t][f] = db
			if db > peak {
				peak = db
			}
		}
	}

	if params.TopDB > 0 && !math.IsInf(peak, -1) {
		floor := peak - params.TopDB
		for t := range out {
			for f := range out[t] {
				if out[t][f] < floor {
					out[t][f] = floor
				}
			}
		}
	}

	return out
}
