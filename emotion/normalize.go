package emotion

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// NormalizeMode selects how raw scores are turned into probabilities.
type NormalizeMode string

const (
	// NormalizeAuto keeps scores that already form a distribution and
	// applies softmax otherwise.
	NormalizeAuto NormalizeMode = "auto"
	// NormalizeSoftmax always applies softmax.
	NormalizeSoftmax NormalizeMode = "softmax"
	// NormalizeNone reports no probabilities.
	NormalizeNone NormalizeMode = "none"
)

// distributionTolerance bounds |sum - 1| for scores treated as probabilities.
const distributionTolerance = 1e-3

// ParseNormalizeMode maps a configuration string to a NormalizeMode.
func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch mode := NormalizeMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return NormalizeAuto, nil
	case NormalizeAuto, NormalizeSoftmax, NormalizeNone:
		return mode, nil
	default:
		return NormalizeAuto, fmt.Errorf("unknown normalize mode %q", s)
	}
}

// Normalize returns a probability view of scores and whether a transform was
// applied. NormalizeNone returns nil.
func Normalize(scores []float64, mode NormalizeMode) ([]float64, bool) {
	if len(scores) == 0 || mode == NormalizeNone {
		return nil, false
	}

	if mode != NormalizeSoftmax && IsDistribution(scores) {
		out := make([]float64, len(scores))
		copy(out, scores)
		return out, false
	}

	return Softmax(scores), true
}

// IsDistribution reports whether every score lies in [0, 1] and the scores
// sum to 1 within tolerance.
func IsDistribution(scores []float64) bool {
	if len(scores) == 0 {
		return false
	}
	for _, s := range scores {
		if math.IsNaN(s) || s < 0 || s > 1 {
			return false
		}
	}
	return math.Abs(floats.Sum(scores)-1.0) <= distributionTolerance
}

// Softmax is computed relative to the maximum score.
func Softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	peak := floats.Max(scores)
	for i, s := range scores {
		out[i] = math.Exp(s - peak)
	}
	sum := floats.Sum(out)
	if sum > 0 {
		floats.Scale(1.0/sum, out)
	}
	return out
}
