package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	data := []float64{3, 1, 2}
	Median(data)
	assert.Equal(t, []float64{3, 1, 2}, data, "input must not be reordered")
}

func TestNormalize(t *testing.T) {
	v := []float64{1, -4, 2}
	NormalizeMax(v)
	assert.Equal(t, []float64{0.25, -1, 0.5}, v)

	v = []float64{3, 4}
	NormalizeL2(v)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, v, 1e-12)

	zeros := []float64{0, 0}
	NormalizeMax(zeros)
	NormalizeL2(zeros)
	assert.Equal(t, []float64{0, 0}, zeros)
}

func TestLinspace(t *testing.T) {
	assert.Empty(t, Linspace(0, 1, 0))
	assert.Equal(t, []float64{2}, Linspace(2, 5, 1))
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5), 1e-12)
}

func TestHistogram(t *testing.T) {
	edges := []float64{0, 1, 2, 3}
	counts := Histogram([]float64{0, 0.5, 1, 2.999, 3, -1, 4, math.NaN()}, edges)
	// 3 falls into the closed last bin, out-of-range values are dropped
	assert.Equal(t, []int{2, 1, 2}, counts)
	assert.Empty(t, Histogram([]float64{1}, []float64{0}))
}

func TestArgMaxAndMod(t *testing.T) {
	assert.Equal(t, -1, ArgMax(nil))
	assert.Equal(t, 1, ArgMax([]float64{1, 5, 5, 2}))

	assert.InDelta(t, 1.0, Mod(-11, 12), 1e-12)
	assert.InDelta(t, 11.0, Mod(11, 12), 1e-12)
	assert.InDelta(t, -1.0, Mod(11, -12), 1e-12)
	assert.Equal(t, 0.0, Mod(24, 12))
}

func TestParseInterpolation(t *testing.T) {
	for in, want := range map[string]InterpolationType{"": Linear, "Linear": Linear, " cubic ": Cubic} {
		got, err := ParseInterpolation(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseInterpolation("sinc")
	assert.Error(t, err)
	assert.Equal(t, "cubic", Cubic.String())
}

func TestInterpolate(t *testing.T) {
	data := []float64{0, 10, 20, 30, 40}
	lin := NewInterpolator(Linear)
	assert.Equal(t, 15.0, lin.Interpolate(data, 1.5))
	assert.Equal(t, 0.0, lin.Interpolate(data, -1))
	assert.Equal(t, 40.0, lin.Interpolate(data, 9))

	// a straight line is reproduced exactly by Catmull-Rom away from the edges
	cubic := NewInterpolator(Cubic)
	assert.InDelta(t, 25.0, cubic.Interpolate(data, 2.5), 1e-12)
}

func TestResampleSignal(t *testing.T) {
	interp := NewInterpolator(Linear)

	up := interp.ResampleSignal([]float64{0, 1, 2, 3}, 1, 2)
	assert.Len(t, up, 8)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}, up, 1e-12)

	down := interp.ResampleSignal([]float64{0, 1, 2, 3, 4, 5}, 2, 1)
	assert.Equal(t, []float64{0, 2, 4}, down)

	same := []float64{1, 2}
	out := interp.ResampleSignal(same, 8000, 8000)
	assert.Equal(t, same, out)
	out[0] = 9
	assert.Equal(t, 1.0, same[0], "resampling at the same rate returns a copy")
}
