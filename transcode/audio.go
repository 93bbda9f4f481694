// Package transcode reads audio files into mono float64 sample buffers at the
// sample rate the feature extractor expects.
package transcode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // Mono samples, nominally in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
	Metadata   *Metadata     `json:"metadata,omitempty"`
}

// Metadata describes the source before decoding.
type Metadata struct {
	Path        string  `json:"path"`
	Decoder     string  `json:"decoder"`
	Format      string  `json:"format,omitempty"`
	Codec       string  `json:"codec,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	SampleRate  int     `json:"sample_rate,omitempty"` // Source sample rate
	Channels    int     `json:"channels,omitempty"`    // Source channel count
	BitDepth    int     `json:"bit_depth,omitempty"`
	Bitrate     int     `json:"bitrate,omitempty"`
	Duration    float64 `json:"duration,omitempty"` // Source duration in seconds, when known
}

// Decoder reads an audio file into a mono buffer at the configured target rate.
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*AudioData, error)
	Name() string
}

// Backend names a Decoder implementation.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendFFmpeg Backend = "ffmpeg"
	BackendWAV    Backend = "wav"
)

// Config holds decoder configuration
type Config struct {
	Backend          Backend       `json:"backend"`            // "auto", "ffmpeg" or "wav"
	TargetSampleRate int           `json:"target_sample_rate"` // Output sample rate
	MaxDuration      time.Duration `json:"max_duration"`       // 0 decodes everything
	ResampleQuality  string        `json:"resample_quality"`   // ffmpeg soxr precision: "fast", "medium", "high"
	Interpolation    string        `json:"interpolation"`      // WAV resampling: "linear" or "cubic"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"` // Per ffmpeg/ffprobe invocation

	// Loudness normalisation changes the waveform the model sees, so it is
	// off unless explicitly requested.
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultConfig returns mono 44.1 kHz decoding with no normalisation.
func DefaultConfig() Config {
	return Config{
		Backend:             BackendAuto,
		TargetSampleRate:    44100,
		MaxDuration:         0,
		ResampleQuality:     "high",
		Interpolation:       "linear",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             30 * time.Second,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -23.0,
		TargetPeak:          -2.0,
		LoudnessRange:       7.0,
	}
}

// Validate checks the configuration without looking for binaries.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendFFmpeg, BackendWAV:
	default:
		return fmt.Errorf("unknown decoder backend %q", c.Backend)
	}
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %v", c.MaxDuration)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", c.Timeout)
	}
	switch strings.ToLower(c.ResampleQuality) {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	if _, err := common.ParseInterpolation(c.Interpolation); err != nil {
		return err
	}
	if c.EnableNormalization {
		switch c.NormalizationMethod {
		case "loudnorm", "dynaudnorm":
		default:
			return fmt.Errorf("unknown normalization method %q", c.NormalizationMethod)
		}
	}
	return nil
}

func durationOf(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// contentTypeFromCodec maps codec to content type
func contentTypeFromCodec(codec string) string {
	switch codec {
	case "aac":
		return "audio/aac"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "vorbis", "ogg":
		return "audio/ogg"
	case "opus":
		return "audio/opus"
	case "pcm_s16le", "pcm_s24le", "pcm_s32le", "pcm_f32le", "pcm_u8":
		return "audio/wav"
	default:
		return "audio/unknown"
	}
}
