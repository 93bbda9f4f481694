package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span names for the prediction stages.
const (
	SpanPredict = "emotion.predict"
	SpanDecode  = "emotion.decode"
	SpanExtract = "emotion.extract"
	SpanScore   = "emotion.score"
)

const (
	AttrRequestID = "request.id"

	AttrAudioPath       = "audio.path"
	AttrAudioDecoder    = "audio.decoder"
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioChannels   = "audio.channels"
	AttrAudioSamples    = "audio.samples"
	AttrAudioDuration   = "audio.duration_seconds"

	AttrFeatureFrames = "features.frames"
	AttrFeatureLength = "features.length"

	AttrModelLabel      = "model.label"
	AttrModelScore      = "model.score"
	AttrModelNormalized = "model.normalized"
)

// AudioAttrs describes a decoded buffer.
func AudioAttrs(decoder string, sampleRate, channels, samples int, seconds float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAudioDecoder, decoder),
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Int(AttrAudioChannels, channels),
		attribute.Int(AttrAudioSamples, samples),
		attribute.Float64(AttrAudioDuration, seconds),
	}
}

// FeatureAttrs describes an extracted feature vector.
func FeatureAttrs(frames, length int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrFeatureFrames, frames),
		attribute.Int(AttrFeatureLength, length),
	}
}

// PredictionAttrs describes the decided label.
func PredictionAttrs(label string, score float64, normalized bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrModelLabel, label),
		attribute.Float64(AttrModelScore, score),
		attribute.Bool(AttrModelNormalized, normalized),
	}
}
