// Package emotion defines the emotion label set, the arg-max decision rule
// and the sentinel errors shared by the classification pipeline.
package emotion

import (
	"fmt"
	"math"
)

// Label is one of the eight emotions the model distinguishes.
type Label string

const (
	Angry    Label = "angry"
	Calm     Label = "calm"
	Disgust  Label = "disgust"
	Fear     Label = "fear"
	Happy    Label = "happy"
	Neutral  Label = "neutral"
	Sad      Label = "sad"
	Surprise Label = "surprise"
)

// Labels is ordered to match the model's output indices.
var Labels = []Label{Angry, Calm, Disgust, Fear, Happy, Neutral, Sad, Surprise}

// NumLabels is the length of every score vector.
const NumLabels = 8

func (l Label) String() string {
	return string(l)
}

// Valid reports whether l is in the label set.
func (l Label) Valid() bool {
	_, ok := IndexOf(l)
	return ok
}

// IndexOf returns the model output index of l.
func IndexOf(l Label) (int, bool) {
	for i, candidate := range Labels {
		if candidate == l {
			return i, true
		}
	}
	return -1, false
}

// LabelAt returns the label for a model output index.
func LabelAt(index int) (Label, error) {
	if index < 0 || index >= len(Labels) {
		return "", fmt.Errorf("%w: label index %d out of range [0, %d)", ErrShapeMismatch, index, len(Labels))
	}
	return Labels[index], nil
}

// ArgMax returns the index of the largest score. Ties resolve to the lowest
// index and NaN is skipped unless every score is NaN, in which case index 0
// is returned. Empty input returns -1.
func ArgMax[T float32 | float64](scores []T) int {
	best := -1
	bestVal := math.Inf(-1)
	for i, s := range scores {
		v := float64(s)
		if math.IsNaN(v) {
			continue
		}
		if best == -1 || v > bestVal {
			best = i
			bestVal = v
		}
	}
	if best == -1 && len(scores) > 0 {
		return 0
	}
	return best
}

// Decide maps a score vector to its arg-max label. A NaN anywhere in the
// vector is rejected rather than skipped.
func Decide[T float32 | float64](scores []T) (Label, error) {
	if len(scores) != NumLabels {
		return "", fmt.Errorf("%w: expected %d scores, got %d", ErrShapeMismatch, NumLabels, len(scores))
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) {
			return "", fmt.Errorf("%w: score %d (%s) is NaN", ErrInvalidScores, i, Labels[i])
		}
	}
	return LabelAt(ArgMax(scores))
}

// ScoreMap pairs every label with its score.
func ScoreMap(scores []float64) map[Label]float64 {
	out := make(map[Label]float64, len(Labels))
	for i, l := range Labels {
		if i < len(scores) {
			out[l] = scores[i]
		}
	}
	return out
}
