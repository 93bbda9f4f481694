// Package classifier runs the full prediction pipeline: decode an audio file,
// extract its feature vector, score it and pick the arg-max emotion.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/model"
	"github.com/RyanBlaney/sonido-emotion/tracing"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

// Prediction is the outcome of classifying one clip.
type Prediction struct {
	Label         emotion.Label `json:"label"`
	Index         int           `json:"index"`
	Scores        []float64     `json:"scores"`                  // Raw scorer output in label order
	Probabilities []float64     `json:"probabilities,omitempty"` // nil when normalisation is disabled
	Normalized    bool          `json:"normalized"`              // True when a softmax was applied
	Duration      time.Duration `json:"duration"`
	SampleRate    int           `json:"sample_rate"`
	Source        string        `json:"source,omitempty"`
}

// Score returns the raw score of the predicted label.
func (p *Prediction) Score() float64 {
	if p.Index < 0 || p.Index >= len(p.Scores) {
		return 0
	}
	return p.Scores[p.Index]
}

// Analysis is a decoded clip with its feature breakdown.
type Analysis struct {
	Audio    *transcode.AudioData
	Features *features.Features
	Vector   []float64
	Layout   []features.Segment // Where each feature sits in Vector
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithNormalizeMode selects how Probabilities are derived from raw scores.
func WithNormalizeMode(mode emotion.NormalizeMode) Option {
	return func(c *Classifier) {
		c.normalize = mode
	}
}

// WithLogger replaces the package logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTempDir sets where PredictReader stages uploads. Empty uses os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Classifier) {
		c.tempDir = dir
	}
}

// Classifier holds the pipeline stages. It has no mutable state after
// construction and is safe for concurrent use when its stages are.
type Classifier struct {
	decoder   transcode.Decoder
	extractor *features.Extractor
	scorer    model.Scorer
	normalize emotion.NormalizeMode
	tempDir   string
	logger    logging.Logger
}

// New wires the pipeline. All three stages are required.
func New(decoder transcode.Decoder, extractor *features.Extractor, scorer model.Scorer, opts ...Option) (*Classifier, error) {
	if decoder == nil {
		return nil, errors.New("classifier: decoder is required")
	}
	if extractor == nil {
		return nil, errors.New("classifier: extractor is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: classifier: scorer is required", emotion.ErrModelUnavailable)
	}

	c := &Classifier{
		decoder:   decoder,
		extractor: extractor,
		scorer:    scorer,
		normalize: emotion.NormalizeAuto,
		logger: logging.WithFields(logging.Fields{
			"component": "classifier",
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PredictEmotion decodes the file at path and classifies it.
func (c *Classifier) PredictEmotion(ctx context.Context, path string) (*Prediction, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.SpanPredict,
		trace.WithAttributes(attribute.String(tracing.AttrAudioPath, path)))
	defer span.End()

	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "PredictEmotion",
		"path":     path,
	})

	audio, err := c.decode(ctx, path)
	if err != nil {
		tracing.RecordError(span, err)
		logger.Debug("Decode failed", logging.Fields{"error": err.Error()})
		return nil, err
	}

	pred, err := c.predict(ctx, audio.PCM, audio.SampleRate)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	pred.Duration = audio.Duration
	pred.Source = path

	logger.Debug("Prediction complete", logging.Fields{
		"label": pred.Label,
		"score": pred.Score(),
	})
	return pred, nil
}

// PredictSamples classifies a mono buffer the caller already decoded.
func (c *Classifier) PredictSamples(ctx context.Context, samples []float64, sampleRate int) (*Prediction, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.SpanPredict)
	defer span.End()

	pred, err := c.predict(ctx, samples, sampleRate)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if sampleRate > 0 {
		pred.Duration = time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	}
	return pred, nil
}

// PredictReader stages r in a temporary file and classifies it. name is only
// used for its extension, which helps ffmpeg pick a demuxer.
func (c *Classifier) PredictReader(ctx context.Context, r io.Reader, name string) (*Prediction, error) {
	path, cleanup, err := c.stage(r, name)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pred, err := c.PredictEmotion(ctx, path)
	if err != nil {
		return nil, err
	}
	pred.Source = name
	return pred, nil
}

// Analyze decodes path and returns its feature breakdown without scoring.
func (c *Classifier) Analyze(ctx context.Context, path string) (*Analysis, error) {
	audio, err := c.decode(ctx, path)
	if err != nil {
		return nil, err
	}

	f, err := c.extract(ctx, audio.PCM, audio.SampleRate)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		Audio:    audio,
		Features: f,
		Vector:   f.Vector(),
		Layout:   c.extractor.Params().Layout(),
	}, nil
}

// AnalyzeReader is Analyze for an upload.
func (c *Classifier) AnalyzeReader(ctx context.Context, r io.Reader, name string) (*Analysis, error) {
	path, cleanup, err := c.stage(r, name)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	a, err := c.Analyze(ctx, path)
	if err != nil {
		return nil, err
	}
	if a.Audio.Metadata != nil {
		a.Audio.Metadata.Path = name
	}
	return a, nil
}

// Close releases the scorer.
func (c *Classifier) Close() error {
	return c.scorer.Close()
}

func (c *Classifier) predict(ctx context.Context, samples []float64, sampleRate int) (*Prediction, error) {
	f, err := c.extract(ctx, samples, sampleRate)
	if err != nil {
		return nil, err
	}
	vector := f.Vector()

	scores, err := c.score(ctx, vector)
	if err != nil {
		return nil, err
	}

	label, err := emotion.Decide(scores)
	if err != nil {
		return nil, err
	}
	index, _ := emotion.IndexOf(label)

	probs, normalized := emotion.Normalize(scores, c.normalize)

	pred := &Prediction{
		Label:         label,
		Index:         index,
		Scores:        scores,
		Probabilities: probs,
		Normalized:    normalized,
		SampleRate:    sampleRate,
	}

	trace.SpanFromContext(ctx).SetAttributes(
		tracing.PredictionAttrs(string(label), pred.Score(), normalized)...)
	return pred, nil
}

func (c *Classifier) decode(ctx context.Context, path string) (*transcode.AudioData, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.SpanDecode)
	defer span.End()

	audio, err := c.decoder.DecodeFile(ctx, path)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if len(audio.PCM) == 0 {
		err := emotion.Wrap(emotion.ErrEmptyAudio, "decode", "decoder returned no samples", nil)
		tracing.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(tracing.AudioAttrs(c.decoder.Name(), audio.SampleRate, audio.Channels,
		len(audio.PCM), audio.Duration.Seconds())...)
	return audio, nil
}

func (c *Classifier) extract(ctx context.Context, samples []float64, sampleRate int) (*features.Features, error) {
	_, span := tracing.StartSpan(ctx, tracing.SpanExtract)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := c.extractor.ExtractFeatures(samples, sampleRate)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(tracing.FeatureAttrs(f.Frames, features.VectorLength)...)
	return f, nil
}

func (c *Classifier) score(ctx context.Context, vector []float64) ([]float64, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.SpanScore)
	defer span.End()

	if len(vector) != features.VectorLength {
		err := fmt.Errorf("%w: feature vector has %d values, want %d",
			emotion.ErrShapeMismatch, len(vector), features.VectorLength)
		tracing.RecordError(span, err)
		return nil, err
	}

	raw, err := c.scorer.Score(ctx, features.ToFloat32(vector))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if err := model.CheckOutput(raw); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	scores := make([]float64, len(raw))
	for i, v := range raw {
		scores[i] = float64(v)
	}
	return scores, nil
}

// stage copies r into a temporary file and returns its path and a cleanup
// function that removes it.
func (c *Classifier) stage(r io.Reader, name string) (string, func(), error) {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}

	f, err := os.CreateTemp(c.tempDir, "sonido-upload-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("stage upload: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove staged upload", logging.Fields{"path": path, "error": err.Error()})
		}
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage upload: %w", err)
	}
	return path, cleanup, nil
}
