package emotion

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelsOrder(t *testing.T) {
	require.Len(t, Labels, NumLabels)
	assert.Equal(t, []Label{"angry", "calm", "disgust", "fear", "happy", "neutral", "sad", "surprise"}, Labels)

	for i, l := range Labels {
		idx, ok := IndexOf(l)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
		assert.True(t, l.Valid())
	}
	assert.False(t, Label("bored").Valid())
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"single maximum", []float64{0.1, 0.2, 0.05, 0.05, 0.4, 0.1, 0.05, 0.05}, 4},
		{"tie resolves to first", []float64{0.3, 0.3, 0.1, 0.1, 0.1, 0.05, 0.03, 0.02}, 0},
		{"negative scores", []float64{-3, -1, -2, -5, -4, -9, -7, -8}, 1},
		{"nan skipped", []float64{math.NaN(), 0.1, 0.9, 0, 0, 0, 0, 0}, 2},
		{"all nan", []float64{math.NaN(), math.NaN()}, 0},
		{"empty", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArgMax(tt.scores))
		})
	}
}

func TestArgMaxFloat32(t *testing.T) {
	assert.Equal(t, 7, ArgMax([]float32{0, 0, 0, 0, 0, 0, 0, 1}))
}

func TestDecide(t *testing.T) {
	label, err := Decide([]float64{0.1, 0.2, 0.05, 0.05, 0.4, 0.1, 0.05, 0.05})
	require.NoError(t, err)
	assert.Equal(t, Happy, label)

	label, err = Decide([]float32{0.02, 0.03, 0.05, 0.1, 0.1, 0.1, 0.1, 0.5})
	require.NoError(t, err)
	assert.Equal(t, Surprise, label)
}

func TestDecideRejectsNaN(t *testing.T) {
	_, err := Decide([]float64{0.1, 0.2, math.NaN(), 0.05, 0.4, 0.1, 0.05, 0.05})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScores)
	assert.Contains(t, err.Error(), "disgust")

	nan := float32(math.NaN())
	_, err = Decide([]float32{nan, nan, nan, nan, nan, nan, nan, nan})
	assert.ErrorIs(t, err, ErrInvalidScores)

	// infinities still order
	label, err := Decide([]float64{0, 0, 0, math.Inf(1), 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, Fear, label)
}

func TestDecideWrongLength(t *testing.T) {
	_, err := Decide([]float64{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Decide([]float64{})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLabelAtOutOfRange(t *testing.T) {
	_, err := LabelAt(8)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	l, err := LabelAt(5)
	require.NoError(t, err)
	assert.Equal(t, Neutral, l)
}

func TestNormalizeAutoKeepsDistribution(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.05, 0.05, 0.4, 0.1, 0.05, 0.05}

	probs, normalized := Normalize(scores, NormalizeAuto)
	assert.False(t, normalized)
	assert.Equal(t, scores, probs)

	probs[0] = 99
	assert.Equal(t, 0.1, scores[0], "input must not be aliased")
}

func TestNormalizeAutoAppliesSoftmaxToLogits(t *testing.T) {
	scores := []float64{2, 1, 0, 0, 0, 0, 0, 0}

	probs, normalized := Normalize(scores, NormalizeAuto)
	require.True(t, normalized)
	require.Len(t, probs, len(scores))

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Equal(t, ArgMax(scores), ArgMax(probs))
	assert.Greater(t, probs[0], probs[1])
}

func TestNormalizeModes(t *testing.T) {
	scores := []float64{0.5, 0.5, 0, 0, 0, 0, 0, 0}

	probs, normalized := Normalize(scores, NormalizeSoftmax)
	assert.True(t, normalized)
	assert.InDelta(t, probs[0], probs[1], 1e-12)

	probs, normalized = Normalize(scores, NormalizeNone)
	assert.Nil(t, probs)
	assert.False(t, normalized)
}

func TestSoftmaxLargeValues(t *testing.T) {
	probs := Softmax([]float64{1000, 1000})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, probs, 1e-12)
}

func TestParseNormalizeMode(t *testing.T) {
	for in, want := range map[string]NormalizeMode{
		"":          NormalizeAuto,
		"auto":      NormalizeAuto,
		" Softmax ": NormalizeSoftmax,
		"none":      NormalizeNone,
	} {
		got, err := ParseNormalizeMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseNormalizeMode("sigmoid")
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := Wrap(ErrDecode, "ffmpeg", "decode clip.mp3", cause)

	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "audio decode failed: ffmpeg: decode clip.mp3: exit status 1", err.Error())

	err = Wrap(nil, "", "", nil)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, "audio decode failed: emotion pipeline failure", err.Error())
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(Wrap(ErrEmptyAudio, "decode", "no samples", nil)))
	assert.True(t, IsClientError(fmt.Errorf("outer: %w", ErrDecode)))
	assert.False(t, IsClientError(ErrShapeMismatch))
	assert.False(t, IsClientError(errors.New("boom")))
}

func TestScoreMap(t *testing.T) {
	m := ScoreMap([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Len(t, m, NumLabels)
	assert.Equal(t, 1.0, m[Angry])
	assert.Equal(t, 8.0, m[Surprise])
}
