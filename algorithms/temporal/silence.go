package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultSilenceTopDB is how far below the loudest frame a frame must fall to
// count as silent.
const DefaultSilenceTopDB = 60.0

// SilenceRatio returns the fraction of frames whose RMS is more than topDB
// below the loudest frame. A clip with no energy at all is entirely silent.
func SilenceRatio(rms []float64, topDB float64) float64 {
	if len(rms) == 0 {
		return 0
	}

	peak := floats.Max(rms)
	if peak <= 0 {
		return 1
	}

	threshold := peak * math.Pow(10, -topDB/20)
	silent := 0
	for _, v := range rms {
		if v < threshold {
			silent++
		}
	}
	return float64(silent) / float64(len(rms))
}
