package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/model"
	"github.com/RyanBlaney/sonido-emotion/tracing"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

//go:embed sample_config.toml
var sampleConfig string

// Audio contains decoder settings. Durations are plain numbers so the file
// stays readable without Go duration syntax.
type Audio struct {
	Backend            string  `toml:"backend"`
	SampleRate         int     `toml:"sample_rate"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	ResampleQuality    string  `toml:"resample_quality"`
	Interpolation      string  `toml:"interpolation"`
	FFmpegPath         string  `toml:"ffmpeg_path"`
	FFprobePath        string  `toml:"ffprobe_path"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`

	NormalizeLoudness   bool    `toml:"normalize_loudness"`
	NormalizationMethod string  `toml:"normalization_method"`
	TargetLUFS          float64 `toml:"target_lufs"`
	TargetPeak          float64 `toml:"target_peak"`
	LoudnessRange       float64 `toml:"loudness_range"`
}

// Server contains the REST API settings.
type Server struct {
	Bind                   string `toml:"bind"`
	MaxUploadBytes         int64  `toml:"max_upload_bytes"`
	ReadTimeoutSeconds     int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	TempDir                string `toml:"temp_dir"`
}

// Config encapsulates all configuration values for sonido-emotion.
//
// Configuration sections by subsystem:
//   - Model: scorer backend, model file and score normalisation
//   - Audio: decoder backend, target sample rate and limits
//   - Features: spectral analysis parameters
//   - Server: REST bind address, upload limit and timeouts
//   - Logging: log format and level
//   - Tracing: OpenTelemetry exporter
type Config struct {
	Model    model.Config    `toml:"model"`
	Audio    Audio           `toml:"audio"`
	Features features.Params `toml:"features"`
	Server   Server          `toml:"server"`
	Logging  logging.Options `toml:"logging"`
	Tracing  tracing.Config  `toml:"tracing"`
}

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultUserConfigPath)
}

// Load locates, parses, normalises and validates a configuration file. It
// returns the config, the path that was considered and whether it existed.
// An explicit path that does not exist is an error; without one the
// project file and then the user file are tried, falling back to defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	userPath, err := ExpandPath(defaultUserConfigPath)
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{projectPath, userPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}

	return userPath, false, nil
}

// DecoderConfig converts the [audio] section for transcode.NewDecoder.
func (c *Config) DecoderConfig() transcode.Config {
	return transcode.Config{
		Backend:             transcode.Backend(c.Audio.Backend),
		TargetSampleRate:    c.Audio.SampleRate,
		MaxDuration:         time.Duration(c.Audio.MaxDurationSeconds * float64(time.Second)),
		ResampleQuality:     c.Audio.ResampleQuality,
		Interpolation:       c.Audio.Interpolation,
		FFmpegPath:          c.Audio.FFmpegPath,
		FFprobePath:         c.Audio.FFprobePath,
		Timeout:             time.Duration(c.Audio.TimeoutSeconds) * time.Second,
		EnableNormalization: c.Audio.NormalizeLoudness,
		NormalizationMethod: c.Audio.NormalizationMethod,
		TargetLUFS:          c.Audio.TargetLUFS,
		TargetPeak:          c.Audio.TargetPeak,
		LoudnessRange:       c.Audio.LoudnessRange,
	}
}

// ReadTimeout returns the server read timeout.
func (s Server) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout.
func (s Server) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long in-flight requests get on shutdown.
func (s Server) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
