package spectral

import (
	"math"
)

// flatnessFloor keeps log() finite for silent bins.
const flatnessFloor = 1e-10

// BinFrequencies returns the centre frequency in Hz of each of the
// windowSize/2+1 FFT bins.
func BinFrequencies(sampleRate, windowSize int) []float64 {
	if sampleRate <= 0 || windowSize <= 0 {
		return nil
	}
	freqs := make([]float64, windowSize/2+1)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(windowSize)
	}
	return freqs
}

// Centroid is the magnitude-weighted mean frequency of one spectrum.
// Silent spectra return 0.
func Centroid(spectrum, freqs []float64) float64 {
	var num, den float64
	for i := 0; i < len(spectrum) && i < len(freqs); i++ {
		num += freqs[i] * spectrum[i]
		den += spectrum[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Bandwidth is the second-order spread of the spectrum around centroid.
func Bandwidth(spectrum, freqs []float64, centroid float64) float64 {
	var num, den float64
	for i := 0; i < len(spectrum) && i < len(freqs); i++ {
		d := freqs[i] - centroid
		num += d * d * spectrum[i]
		den += spectrum[i]
	}
	if den == 0 {
		return 0
	}
	return math.Sqrt(num / den)
}

// Rolloff returns the lowest frequency below which percent of the
// spectrum's magnitude lies.
func Rolloff(spectrum, freqs []float64, percent float64) float64 {
	n := min(len(spectrum), len(freqs))
	if n == 0 {
		return 0
	}

	var total float64
	for _, m := range spectrum[:n] {
		total += m
	}
	if total == 0 {
		return 0
	}

	target := percent * total
	var cumulative float64
	for i := 0; i < n; i++ {
		cumulative += spectrum[i]
		if cumulative >= target {
			return freqs[i]
		}
	}
	return freqs[n-1]
}

// Flatness is the ratio of the geometric to the arithmetic mean of the power
// spectrum, in [0, 1]. Tonal frames sit near 0, noise near 1.
func Flatness(power []float64) float64 {
	if len(power) == 0 {
		return 0
	}

	var logSum, sum float64
	for _, p := range power {
		p = math.Max(p, flatnessFloor)
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(power))
	return math.Min(math.Exp(logSum/n)/(sum/n), 1)
}
