package features

import (
	"math"
	"math/rand"
	"testing"

	"github.com/RyanBlaney/sonido-emotion/algorithms/chroma"
	"github.com/RyanBlaney/sonido-emotion/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultParams())
	require.NoError(t, err)
	return e
}

func noise(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()*2 - 1
	}
	return out
}

func tone(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestDefaultLayoutFillsVector(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, VectorLength, p.Length())

	layout := p.Layout()
	require.Len(t, layout, 5)
	assert.Equal(t, Segment{Name: "zero_crossing_rate", Offset: 0, Length: 1}, layout[0])
	assert.Equal(t, Segment{Name: "chroma", Offset: 1, Length: 12}, layout[1])
	assert.Equal(t, Segment{Name: "mfcc", Offset: 13, Length: 20}, layout[2])
	assert.Equal(t, Segment{Name: "rms", Offset: 33, Length: 1}, layout[3])
	assert.Equal(t, Segment{Name: "mel_spectrogram", Offset: 34, Length: 128}, layout[4])
}

func TestExtractLength(t *testing.T) {
	e := newTestExtractor(t)

	for _, n := range []int{1, 100, 2048, 22050, 44100} {
		v, err := e.Extract(noise(n, int64(n)), 44100)
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, v, VectorLength, "n=%d", n)
		for i, x := range v {
			assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "n=%d index %d is %v", n, i, x)
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor(t)
	samples := noise(30000, 7)

	a, err := e.Extract(samples, 44100)
	require.NoError(t, err)
	b, err := e.Extract(samples, 44100)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// a fresh extractor gives the same answer
	c, err := newTestExtractor(t).Extract(samples, 44100)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestExtractSilence(t *testing.T) {
	e := newTestExtractor(t)

	f, err := e.ExtractFeatures(make([]float64, 44100), 44100)
	require.NoError(t, err)

	assert.Equal(t, 1+44100/512, f.Frames)
	assert.Equal(t, []float64{0}, f.ZeroCrossingRate)
	assert.Equal(t, []float64{0}, f.RMS)
	assert.Equal(t, make([]float64, 12), f.Chroma)
	assert.Equal(t, make([]float64, 128), f.MelSpectrogram)
	require.Len(t, f.MFCC, 20)
	assert.InDelta(t, -100*math.Sqrt(128), f.MFCC[0], 1e-6)
	assert.Zero(t, f.Descriptors.Centroid)
	assert.Zero(t, f.Descriptors.Rolloff)
	assert.InDelta(t, 1.0, f.Descriptors.Flatness, 1e-9)
	assert.Equal(t, 1.0, f.Descriptors.SilenceRatio)
	assert.Equal(t, spectral.ZCRStats{}, f.Descriptors.ZeroCrossing)

	// the groups fill the vector exactly, nothing is padded
	assert.Len(t, f.Concat(), VectorLength)
	assert.Equal(t, f.Concat(), f.Vector())
}

func TestExtractTone(t *testing.T) {
	e := newTestExtractor(t)

	f, err := e.ExtractFeatures(tone(440, 44100, 44100, 0.5), 44100)
	require.NoError(t, err)

	assert.InDelta(t, 2*440.0/44100, f.ZeroCrossingRate[0], 0.002)
	assert.InDelta(t, 0.5/math.Sqrt2, f.RMS[0], 0.02)
	assert.InDelta(t, 0.0, f.Tuning, 0.2)

	best := 0
	for c := range f.Chroma {
		if f.Chroma[c] > f.Chroma[best] {
			best = c
		}
	}
	assert.Equal(t, 9, best)

	assert.InDelta(t, 440, f.Descriptors.Centroid, 100)
	assert.InDelta(t, 440, f.Descriptors.Rolloff, 200)
	assert.Less(t, f.Descriptors.Flatness, 0.1)
	assert.Positive(t, f.Descriptors.Bandwidth)
	assert.Zero(t, f.Descriptors.SilenceRatio)

	zcr := f.Descriptors.ZeroCrossing
	assert.InDelta(t, f.ZeroCrossingRate[0], zcr.Mean, 1e-12)
	assert.LessOrEqual(t, zcr.Min, zcr.Mean)
	assert.GreaterOrEqual(t, zcr.Max, zcr.Mean)
	assert.GreaterOrEqual(t, zcr.StdDev, 0.0)
}

func TestChromaUsesMagnitudeSpectrum(t *testing.T) {
	zero := 0.0
	p := DefaultParams()
	p.Tuning = &zero
	e, err := NewExtractor(p)
	require.NoError(t, err)

	// A4 at full scale, E5 at half scale
	samples := tone(440, 44100, 44100, 1.0)
	floats.Add(samples, tone(659.26, 44100, 44100, 0.5))

	f, err := e.ExtractFeatures(samples, 44100)
	require.NoError(t, err)

	stftResult, err := spectral.NewSTFT().Compute(samples, 44100, spectral.DefaultSTFTParams(), windowing.NewPeriodicHann(p.FFTSize))
	require.NoError(t, err)
	cs, err := chroma.NewChromaSTFT(44100, p.FFTSize, p.chromaParams())
	require.NoError(t, err)
	want, err := cs.Compute(stftResult.Magnitude)
	require.NoError(t, err)

	assert.InDeltaSlice(t, meanOverFrames(want.Chroma, p.NumChroma), f.Chroma, 1e-12)
	assert.InDelta(t, 1.0, f.Chroma[9], 1e-9)
	// squaring the spectrum would leave E near a third of A
	assert.Greater(t, f.Chroma[4], 0.45)
}

func TestExtractEmpty(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.Extract(nil, 44100)
	require.Error(t, err)
	assert.ErrorIs(t, err, emotion.ErrEmptyAudio)

	_, err = e.ExtractFeatures([]float64{}, 44100)
	assert.ErrorIs(t, err, emotion.ErrEmptyAudio)
}

func TestExtractInvalidInput(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.Extract([]float64{0.1, 0.2}, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = e.Extract([]float64{0.1, math.NaN()}, 44100)
	assert.ErrorIs(t, err, emotion.ErrDecode)
}

func TestExtractOtherSampleRates(t *testing.T) {
	e := newTestExtractor(t)

	for _, sr := range []int{8000, 16000, 48000} {
		v, err := e.Extract(noise(sr/2, 3), sr)
		require.NoError(t, err, "sr=%d", sr)
		assert.Len(t, v, VectorLength)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"fft size", func(p *Params) { p.FFTSize = 1 }},
		{"hop size", func(p *Params) { p.HopSize = 0 }},
		{"mels", func(p *Params) { p.NumMels = 0 }},
		{"mfcc above mels", func(p *Params) { p.NumMFCC = 200 }},
		{"chroma", func(p *Params) { p.NumChroma = 0 }},
		{"negative min freq", func(p *Params) { p.MinFreq = -1 }},
		{"inverted range", func(p *Params) { p.MinFreq = 4000; p.MaxFreq = 1000 }},
		{"negative top db", func(p *Params) { p.TopDB = -1 }},
	}

	assert.NoError(t, DefaultParams().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)

			_, err := NewExtractor(p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestMinFreqAboveNyquist(t *testing.T) {
	p := DefaultParams()
	p.MinFreq = 10000
	e, err := NewExtractor(p)
	require.NoError(t, err)

	_, err = e.Extract(noise(1000, 1), 16000)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestResize(t *testing.T) {
	long := make([]float64, 200)
	for i := range long {
		long[i] = float64(i)
	}
	got := Resize(long, VectorLength)
	require.Len(t, got, VectorLength)
	assert.Equal(t, long[:VectorLength], got)

	short := make([]float64, 100)
	for i := range short {
		short[i] = float64(i + 1)
	}
	got = Resize(short, VectorLength)
	require.Len(t, got, VectorLength)
	assert.Equal(t, short, got[:100])
	assert.Equal(t, make([]float64, 62), got[100:])

	got[0] = -1
	assert.Equal(t, 1.0, short[0])

	assert.Empty(t, Resize(short, -3))
}

func TestCustomParamsResizeToVectorLength(t *testing.T) {
	p := DefaultParams()
	p.NumMels = 64
	e, err := NewExtractor(p)
	require.NoError(t, err)

	f, err := e.ExtractFeatures(noise(8000, 9), 16000)
	require.NoError(t, err)
	assert.Len(t, f.Concat(), 98)

	v := f.Vector()
	require.Len(t, v, VectorLength)
	assert.Equal(t, make([]float64, VectorLength-98), v[98:])
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{1.5, -2}, ToFloat32([]float64{1.5, -2}))
}
