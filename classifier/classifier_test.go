package classifier

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/model"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

// stubDecoder returns fixed samples, or err.
type stubDecoder struct {
	samples []float64
	rate    int
	err     error
}

func (s *stubDecoder) Name() string { return "stub" }

func (s *stubDecoder) DecodeFile(ctx context.Context, path string) (*transcode.AudioData, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &transcode.AudioData{
		PCM:        s.samples,
		SampleRate: s.rate,
		Channels:   1,
		Duration:   time.Duration(len(s.samples)) * time.Second / time.Duration(s.rate),
	}, nil
}

func tone(n, rate int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func newExtractor(t *testing.T) *features.Extractor {
	t.Helper()
	e, err := features.NewExtractor(features.DefaultParams())
	require.NoError(t, err)
	return e
}

// peakScorer puts all its mass on one label.
func peakScorer(index int) *model.FuncScorer {
	return model.NewFuncScorer(func(ctx context.Context, input []float32) ([]float32, error) {
		out := make([]float32, emotion.NumLabels)
		out[index] = 1
		return out, nil
	})
}

func writeWAV(t *testing.T, path string, samples []float64, rate int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(s * 32767))
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestPredictEmotion(t *testing.T) {
	dec := &stubDecoder{samples: tone(44100, 44100, 440), rate: 44100}
	scorer := peakScorer(4)

	c, err := New(dec, newExtractor(t), scorer)
	require.NoError(t, err)

	pred, err := c.PredictEmotion(context.Background(), "clip.wav")
	require.NoError(t, err)

	assert.Equal(t, emotion.Happy, pred.Label)
	assert.Equal(t, 4, pred.Index)
	assert.Len(t, pred.Scores, emotion.NumLabels)
	assert.Equal(t, 1.0, pred.Score())
	assert.False(t, pred.Normalized, "one-hot scores already form a distribution")
	assert.Equal(t, pred.Scores, pred.Probabilities)
	assert.Equal(t, time.Second, pred.Duration)
	assert.Equal(t, 44100, pred.SampleRate)
	assert.Equal(t, "clip.wav", pred.Source)

	calls := scorer.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], features.VectorLength)
}

func TestPredictionsAreRepeatable(t *testing.T) {
	dec := &stubDecoder{samples: tone(30000, 44100, 220), rate: 44100}
	scorer := model.NewFuncScorer(func(ctx context.Context, input []float32) ([]float32, error) {
		// deterministic function of the features
		out := make([]float32, emotion.NumLabels)
		for i, v := range input {
			out[i%emotion.NumLabels] += v
		}
		return out, nil
	})

	c, err := New(dec, newExtractor(t), scorer)
	require.NoError(t, err)

	a, err := c.PredictEmotion(context.Background(), "a.wav")
	require.NoError(t, err)
	b, err := c.PredictEmotion(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	calls := scorer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])
	assert.Equal(t, emotion.ArgMax(a.Scores), a.Index)
}

func TestPredictAppliesSoftmax(t *testing.T) {
	dec := &stubDecoder{samples: tone(22050, 44100, 440), rate: 44100}
	logits := []float32{2, 1, 0, -1, 3, 0.5, 0, 0}
	scorer, err := model.NewStaticScorer(logits)
	require.NoError(t, err)

	c, err := New(dec, newExtractor(t), scorer)
	require.NoError(t, err)

	pred, err := c.PredictEmotion(context.Background(), "x.wav")
	require.NoError(t, err)
	assert.Equal(t, emotion.Happy, pred.Label)
	assert.True(t, pred.Normalized)
	assert.InDelta(t, 1.0, sum(pred.Probabilities), 1e-9)
	assert.Equal(t, 4, emotion.ArgMax(pred.Probabilities))

	c, err = New(dec, newExtractor(t), scorer, WithNormalizeMode(emotion.NormalizeNone))
	require.NoError(t, err)
	pred, err = c.PredictEmotion(context.Background(), "x.wav")
	require.NoError(t, err)
	assert.Nil(t, pred.Probabilities)
	assert.False(t, pred.Normalized)
}

func TestPredictErrors(t *testing.T) {
	ctx := context.Background()
	scorer := peakScorer(0)

	c, err := New(&stubDecoder{err: emotion.Wrap(emotion.ErrDecode, "decode", "bad file", nil)}, newExtractor(t), scorer)
	require.NoError(t, err)
	_, err = c.PredictEmotion(ctx, "bad.mp3")
	assert.ErrorIs(t, err, emotion.ErrDecode)

	c, err = New(&stubDecoder{samples: nil, rate: 44100}, newExtractor(t), scorer)
	require.NoError(t, err)
	_, err = c.PredictEmotion(ctx, "empty.wav")
	assert.ErrorIs(t, err, emotion.ErrEmptyAudio)

	_, err = c.PredictSamples(ctx, nil, 44100)
	assert.ErrorIs(t, err, emotion.ErrEmptyAudio)

	wrong := model.NewFuncScorer(func(ctx context.Context, input []float32) ([]float32, error) {
		return make([]float32, 4), nil
	})
	c, err = New(&stubDecoder{samples: tone(4410, 44100, 440), rate: 44100}, newExtractor(t), wrong)
	require.NoError(t, err)
	_, err = c.PredictEmotion(ctx, "x.wav")
	assert.ErrorIs(t, err, emotion.ErrShapeMismatch)

	nan := model.NewFuncScorer(func(ctx context.Context, input []float32) ([]float32, error) {
		out := make([]float32, emotion.NumLabels)
		out[5] = float32(math.NaN())
		return out, nil
	})
	c, err = New(&stubDecoder{samples: tone(4410, 44100, 440), rate: 44100}, newExtractor(t), nan)
	require.NoError(t, err)
	_, err = c.PredictEmotion(ctx, "x.wav")
	assert.ErrorIs(t, err, emotion.ErrInvalidScores)

	require.NoError(t, scorer.Close())
	c, err = New(&stubDecoder{samples: tone(4410, 44100, 440), rate: 44100}, newExtractor(t), scorer)
	require.NoError(t, err)
	_, err = c.PredictEmotion(ctx, "x.wav")
	assert.ErrorIs(t, err, emotion.ErrModelUnavailable)
}

func TestPredictCancelledContext(t *testing.T) {
	c, err := New(&stubDecoder{samples: tone(4410, 44100, 440), rate: 44100}, newExtractor(t), peakScorer(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.PredictSamples(ctx, tone(4410, 44100, 440), 44100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresStages(t *testing.T) {
	e := newExtractor(t)
	_, err := New(nil, e, peakScorer(0))
	assert.Error(t, err)
	_, err = New(&stubDecoder{}, nil, peakScorer(0))
	assert.Error(t, err)
	_, err = New(&stubDecoder{}, e, nil)
	assert.ErrorIs(t, err, emotion.ErrModelUnavailable)
}

func TestPredictReaderStagesAndCleansUp(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.wav")
	writeWAV(t, src, tone(22050, 44100, 330), 44100)
	raw, err := os.ReadFile(src)
	require.NoError(t, err)

	dec, err := transcode.NewWAVDecoder(func() transcode.Config {
		cfg := transcode.DefaultConfig()
		cfg.Backend = transcode.BackendWAV
		return cfg
	}())
	require.NoError(t, err)

	staging := t.TempDir()
	c, err := New(dec, newExtractor(t), peakScorer(7), WithTempDir(staging))
	require.NoError(t, err)

	pred, err := c.PredictReader(context.Background(), bytes.NewReader(raw), "upload.wav")
	require.NoError(t, err)
	assert.Equal(t, emotion.Surprise, pred.Label)
	assert.Equal(t, "upload.wav", pred.Source)
	assert.InDelta(t, 0.5, pred.Duration.Seconds(), 1e-3)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged upload must be removed")

	_, err = c.PredictReader(context.Background(), strings.NewReader("garbage"), "upload.wav")
	assert.ErrorIs(t, err, emotion.ErrDecode)
	entries, err = os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyze(t *testing.T) {
	c, err := New(&stubDecoder{samples: tone(44100, 44100, 440), rate: 44100}, newExtractor(t), peakScorer(0))
	require.NoError(t, err)

	a, err := c.Analyze(context.Background(), "clip.wav")
	require.NoError(t, err)
	assert.Len(t, a.Vector, features.VectorLength)
	assert.Len(t, a.Features.MFCC, 20)
	assert.Equal(t, 87, a.Features.Frames)

	r, err := c.AnalyzeReader(context.Background(), strings.NewReader("ignored by stub"), "x.wav")
	require.NoError(t, err)
	assert.Equal(t, a.Vector, r.Vector)
}

func TestConcurrentPredictions(t *testing.T) {
	c, err := New(&stubDecoder{samples: tone(22050, 44100, 440), rate: 44100}, newExtractor(t), peakScorer(2))
	require.NoError(t, err)

	want, err := c.PredictEmotion(context.Background(), "x.wav")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.PredictEmotion(context.Background(), "x.wav")
			if err != nil {
				errs <- err
				return
			}
			if got.Label != want.Label {
				errs <- errors.New("label differs between concurrent predictions")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
