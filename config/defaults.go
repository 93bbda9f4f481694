package config

import (
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/model"
	"github.com/RyanBlaney/sonido-emotion/tracing"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

const (
	projectConfigName             = "sonido-emotion.toml"
	defaultUserConfigPath         = "~/.config/sonido-emotion/config.toml"
	defaultServerBind             = "127.0.0.1:8080"
	defaultMaxUploadBytes         = 32 << 20
	defaultReadTimeoutSeconds     = 30
	defaultWriteTimeoutSeconds    = 120
	defaultShutdownTimeoutSeconds = 10
	defaultLogLevel               = "info"
	defaultLogFormat              = "text"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	decoder := transcode.DefaultConfig()
	return Config{
		Model: model.DefaultConfig(),
		Audio: Audio{
			Backend:             string(decoder.Backend),
			SampleRate:          decoder.TargetSampleRate,
			MaxDurationSeconds:  decoder.MaxDuration.Seconds(),
			ResampleQuality:     decoder.ResampleQuality,
			Interpolation:       decoder.Interpolation,
			FFmpegPath:          decoder.FFmpegPath,
			FFprobePath:         decoder.FFprobePath,
			TimeoutSeconds:      int(decoder.Timeout.Seconds()),
			NormalizeLoudness:   decoder.EnableNormalization,
			NormalizationMethod: decoder.NormalizationMethod,
			TargetLUFS:          decoder.TargetLUFS,
			TargetPeak:          decoder.TargetPeak,
			LoudnessRange:       decoder.LoudnessRange,
		},
		Features: features.DefaultParams(),
		Server: Server{
			Bind:                   defaultServerBind,
			MaxUploadBytes:         defaultMaxUploadBytes,
			ReadTimeoutSeconds:     defaultReadTimeoutSeconds,
			WriteTimeoutSeconds:    defaultWriteTimeoutSeconds,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
		},
		Logging: logging.Options{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Tracing: tracing.DefaultConfig(),
	}
}
