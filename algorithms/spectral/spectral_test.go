package spectral

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-emotion/algorithms/windowing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestPadCenter(t *testing.T) {
	signal := []float64{1, 2, 3}

	assert.Equal(t, []float64{0, 0, 1, 2, 3, 0, 0}, PadCenter(signal, 2, PadConstant))
	assert.Equal(t, []float64{1, 1, 1, 2, 3, 3, 3}, PadCenter(signal, 2, PadEdge))

	out := PadCenter(signal, 0, PadEdge)
	assert.Equal(t, signal, out)
	out[0] = 9
	assert.Equal(t, 1.0, signal[0])
}

func TestFrameCount(t *testing.T) {
	assert.Equal(t, 0, FrameCount(10, 20, 5))
	assert.Equal(t, 1, FrameCount(20, 20, 5))
	assert.Equal(t, 3, FrameCount(30, 20, 5))

	// centred framing yields 1 + n/hop frames
	for _, n := range []int{1, 511, 512, 44100} {
		assert.Equal(t, 1+n/512, CenteredFrameCount(n, 2048, 512), "n=%d", n)
	}
}

func TestFrames(t *testing.T) {
	frames, err := Frames([]float64{0, 1, 2, 3, 4, 5}, 4, 2)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []float64{0, 1, 2, 3}, frames[0])
	assert.Equal(t, []float64{2, 3, 4, 5}, frames[1])

	_, err = Frames([]float64{1, 2}, 4, 2)
	assert.Error(t, err)
	_, err = Frames([]float64{1, 2}, 0, 2)
	assert.Error(t, err)
}

func TestSTFTFrameCountAndPeak(t *testing.T) {
	const sr = 44100
	// bin 40 of a 2048-point FFT
	freq := 40 * float64(sr) / 2048
	signal := sine(freq, sr, sr, 0.5)

	result, err := NewSTFT().Compute(signal, sr, DefaultSTFTParams(), windowing.NewPeriodicHann(2048))
	require.NoError(t, err)

	assert.Equal(t, 1+sr/512, result.TimeFrames)
	assert.Equal(t, 1025, result.FreqBins)
	require.Len(t, result.Magnitude, result.TimeFrames)

	mid := result.Magnitude[result.TimeFrames/2]
	peak := 0
	for k := range mid {
		if mid[k] > mid[peak] {
			peak = k
		}
	}
	assert.Equal(t, 40, peak)
	// Hann window coherent gain is 0.5
	assert.InDelta(t, 0.5*0.5*2048/2, mid[40], 1.0)
}

func TestSTFTDeterministic(t *testing.T) {
	signal := sine(300, 16000, 16000, 0.3)
	w := windowing.NewPeriodicHann(2048)

	a, err := NewSTFT().Compute(signal, 16000, DefaultSTFTParams(), w)
	require.NoError(t, err)
	b, err := NewSTFT().Compute(signal, 16000, DefaultSTFTParams(), w)
	require.NoError(t, err)

	assert.Equal(t, a.Magnitude, b.Magnitude)
}

func TestSTFTRejectsBadInput(t *testing.T) {
	s := NewSTFT()
	_, err := s.Compute(nil, 44100, DefaultSTFTParams(), nil)
	assert.Error(t, err)

	_, err = s.ComputeWithWindow(make([]float64, 4096), 2048, 0, 44100, nil)
	assert.Error(t, err)

	_, err = s.ComputeWithWindow(make([]float64, 4096), 2048, 512, 0, nil)
	assert.Error(t, err)

	_, err = s.ComputeWithWindow(make([]float64, 4096), 2048, 512, 44100, windowing.NewPeriodicHann(1024))
	assert.Error(t, err)
}

func TestPowerToDB(t *testing.T) {
	ps := NewPowerSpectrum()

	db := ps.PowerToDB([][]float64{{1, 0.1, 1e-12}}, DBParams{Ref: 1, Amin: 1e-10})
	assert.InDeltaSlice(t, []float64{0, -10, -100}, db[0], 1e-9)

	db = ps.PowerToDB([][]float64{{1, 0.1}, {1e-12, 100}}, DefaultDBParams())
	assert.InDeltaSlice(t, []float64{0, -10}, db[0], 1e-9)
	// clipped to 80 dB below the global peak of +20 dB
	assert.InDeltaSlice(t, []float64{-60, 20}, db[1], 1e-9)
}

func TestSlaneyMelScale(t *testing.T) {
	ms := NewMelScale()

	assert.InDelta(t, 6.6, ms.HzToMel(440), 1e-12)
	assert.InDelta(t, 15.0, ms.HzToMel(1000), 1e-12)
	assert.InDelta(t, 15.0+math.Log(2)*27/math.Log(6.4), ms.HzToMel(2000), 1e-9)

	for _, hz := range []float64{0, 100, 999, 1000, 4000, 22050} {
		assert.InDelta(t, hz, ms.MelToHz(ms.HzToMel(hz)), 1e-6)
	}
}

func TestMelFilterBank(t *testing.T) {
	ms := NewMelScale()
	fb, err := ms.CreateMelFilterBank(128, 2048, 44100, 0, 0)
	require.NoError(t, err)
	require.Len(t, fb, 128)

	for m, filter := range fb {
		require.Len(t, filter, 1025)
		peak := 0.0
		for _, w := range filter {
			assert.GreaterOrEqual(t, w, 0.0)
			peak = math.Max(peak, w)
		}
		// low filters are narrower than a bin and may miss every bin centre
		if m > 10 {
			assert.Greater(t, peak, 0.0, "filter %d is empty", m)
		}
	}

	_, err = ms.CreateMelFilterBank(0, 2048, 44100, 0, 0)
	assert.Error(t, err)
	_, err = ms.CreateMelFilterBank(128, 2048, 44100, 5000, 1000)
	assert.Error(t, err)
}

func TestMelSpectrogramShapeCheck(t *testing.T) {
	mel, err := NewMelSpectrogram(22050, 512, 40, 0, 0)
	require.NoError(t, err)

	out, err := mel.Compute([][]float64{make([]float64, 257)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0], 40)

	_, err = mel.Compute([][]float64{make([]float64, 100)})
	assert.Error(t, err)
}

func TestMFCCOrthonormalDCT(t *testing.T) {
	mfcc, err := NewMFCC(MFCCParams{NumCoefficients: 8, NumMelFilters: 8, DB: DefaultDBParams()})
	require.NoError(t, err)

	// 0, 10, ..., 70 dB: inside top_db, so nothing is clipped
	frame := make([]float64, 8)
	energy := 0.0
	for i := range frame {
		frame[i] = math.Pow(10, float64(i))
		db := 10.0 * float64(i)
		energy += db * db
	}

	out, err := mfcc.ComputeFrames([][]float64{frame})
	require.NoError(t, err)
	require.Len(t, out, 1)

	// an orthonormal transform preserves energy
	got := 0.0
	for _, c := range out[0] {
		got += c * c
	}
	assert.InDelta(t, energy, got, 1e-6)
	assert.InDelta(t, 280/math.Sqrt(8), out[0][0], 1e-9)
}

func TestMFCCConstantSpectrum(t *testing.T) {
	mfcc, err := NewMFCC(DefaultMFCCParams())
	require.NoError(t, err)

	frame := make([]float64, 128)
	out, err := mfcc.ComputeFrames([][]float64{frame, frame})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out[0], 20)

	// silence sits at the amin floor of -100 dB in every band
	assert.InDelta(t, -100*math.Sqrt(128), out[0][0], 1e-9)
	for k := 1; k < 20; k++ {
		assert.InDelta(t, 0.0, out[0][k], 1e-9)
	}

	_, err = mfcc.ComputeFrames([][]float64{make([]float64, 40)})
	assert.Error(t, err)
}

func TestNewMFCCValidation(t *testing.T) {
	_, err := NewMFCC(MFCCParams{NumCoefficients: 0, NumMelFilters: 128})
	assert.Error(t, err)
	_, err = NewMFCC(MFCCParams{NumCoefficients: 40, NumMelFilters: 20})
	assert.Error(t, err)
	_, err = NewMFCC(MFCCParams{NumCoefficients: 13, NumMelFilters: 0})
	assert.Error(t, err)
}

func TestZeroCrossingRate(t *testing.T) {
	zcr, err := NewZeroCrossingRate(DefaultZCRParams())
	require.NoError(t, err)

	assert.Equal(t, 0.0, zcr.Compute([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0.75, zcr.Compute([]float64{1, -1, 1, -1}))
	// zero counts as positive
	assert.Equal(t, 0.0, zcr.Compute([]float64{0, 1, 0, 1}))
	assert.Equal(t, 0.75, zcr.Compute([]float64{-1, 0, -1, 0}))
	// values inside the threshold are snapped to zero
	assert.Equal(t, 0.0, zcr.Compute([]float64{1e-12, -1e-12, 1e-12, 0.5}))
}

func TestZeroCrossingRateFrames(t *testing.T) {
	zcr, err := NewZeroCrossingRate(DefaultZCRParams())
	require.NoError(t, err)

	values, err := zcr.ComputeFrames(make([]float64, 44100))
	require.NoError(t, err)
	assert.Len(t, values, 1+44100/512)
	for _, v := range values {
		assert.Equal(t, 0.0, v)
	}

	values, err = zcr.ComputeFrames(sine(441, 44100, 44100, 0.5))
	require.NoError(t, err)
	s := zcr.Stats(values)
	assert.InDelta(t, 2*441.0/44100, s.Mean, 0.002)
	assert.LessOrEqual(t, s.Min, s.Mean)
	assert.GreaterOrEqual(t, s.Max, s.Mean)

	_, err = zcr.ComputeFrames(nil)
	assert.Error(t, err)
}

func TestDescriptors(t *testing.T) {
	freqs := BinFrequencies(8000, 8)
	assert.Equal(t, []float64{0, 1000, 2000, 3000, 4000}, freqs)

	peak := []float64{0, 0, 1, 0, 0}
	assert.Equal(t, 2000.0, Centroid(peak, freqs))
	assert.Equal(t, 0.0, Bandwidth(peak, freqs, 2000))
	assert.Equal(t, 2000.0, Rolloff(peak, freqs, 0.85))

	flat := []float64{1, 1, 1, 1, 1}
	assert.Equal(t, 2000.0, Centroid(flat, freqs))
	assert.InDelta(t, math.Sqrt(2e6), Bandwidth(flat, freqs, 2000), 1e-9)
	assert.Equal(t, 4000.0, Rolloff(flat, freqs, 0.85))
	assert.InDelta(t, 1.0, Flatness(flat), 1e-12)
	assert.Less(t, Flatness([]float64{1, 1e-6, 1e-6, 1e-6, 1e-6}), 0.01)

	silent := make([]float64, 5)
	assert.Zero(t, Centroid(silent, freqs))
	assert.Zero(t, Bandwidth(silent, freqs, 0))
	assert.Zero(t, Rolloff(silent, freqs, 0.85))
	assert.Nil(t, BinFrequencies(0, 8))
}
