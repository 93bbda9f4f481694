package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-emotion/model"
)

// Environment variables that override the file. They are read after the
// file so deployments can keep one config and vary these per host.
const (
	EnvModelPath      = "SONIDO_MODEL_PATH"
	EnvModelBackend   = "SONIDO_MODEL_BACKEND"
	EnvRuntimeLibrary = "ONNXRUNTIME_LIB"
	EnvDecoder        = "SONIDO_DECODER"
	EnvServerBind     = "SONIDO_SERVER_BIND"
	EnvMaxUploadBytes = "SONIDO_MAX_UPLOAD_BYTES"
	EnvLogLevel       = "SONIDO_LOG_LEVEL"
	EnvLogFormat      = "SONIDO_LOG_FORMAT"
	EnvTraceExporter  = "SONIDO_TRACE_EXPORTER"
	EnvOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvEnvironment    = "ENVIRONMENT"
)

func (c *Config) normalize() error {
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeAudio()
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeTracing()
	return nil
}

func (c *Config) normalizeModel() error {
	if value, ok := lookupEnv(EnvModelBackend); ok {
		c.Model.Backend = model.Backend(strings.ToLower(value))
	}
	if value, ok := lookupEnv(EnvModelPath); ok {
		c.Model.Path = value
	}
	if c.Model.RuntimeLibrary == "" {
		if value, ok := lookupEnv(EnvRuntimeLibrary); ok {
			c.Model.RuntimeLibrary = value
		}
	}
	c.Model.Normalize = strings.ToLower(strings.TrimSpace(c.Model.Normalize))

	var err error
	if c.Model.Backend == model.BackendONNX {
		if c.Model.Path, err = ExpandPath(strings.TrimSpace(c.Model.Path)); err != nil {
			return fmt.Errorf("model.path: %w", err)
		}
	}
	if c.Model.RuntimeLibrary, err = ExpandPath(strings.TrimSpace(c.Model.RuntimeLibrary)); err != nil {
		return fmt.Errorf("model.runtime_library: %w", err)
	}
	return nil
}

func (c *Config) normalizeAudio() {
	if value, ok := lookupEnv(EnvDecoder); ok {
		c.Audio.Backend = value
	}
	c.Audio.Backend = strings.ToLower(strings.TrimSpace(c.Audio.Backend))
	if c.Audio.Backend == "" {
		c.Audio.Backend = "auto"
	}
	c.Audio.ResampleQuality = strings.ToLower(strings.TrimSpace(c.Audio.ResampleQuality))
	c.Audio.Interpolation = strings.ToLower(strings.TrimSpace(c.Audio.Interpolation))
	if strings.TrimSpace(c.Audio.FFmpegPath) == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(c.Audio.FFprobePath) == "" {
		c.Audio.FFprobePath = "ffprobe"
	}
}

func (c *Config) normalizeServer() error {
	if value, ok := lookupEnv(EnvServerBind); ok {
		c.Server.Bind = value
	}
	if value, ok := lookupEnv(EnvMaxUploadBytes); ok {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxUploadBytes, err)
		}
		c.Server.MaxUploadBytes = n
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if c.Server.TempDir != "" {
		var err error
		if c.Server.TempDir, err = ExpandPath(c.Server.TempDir); err != nil {
			return fmt.Errorf("server.temp_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := lookupEnv(EnvLogLevel); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupEnv(EnvLogFormat); ok {
		c.Logging.Format = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func (c *Config) normalizeTracing() {
	if value, ok := lookupEnv(EnvTraceExporter); ok {
		c.Tracing.Exporter = value
	}
	if value, ok := lookupEnv(EnvOTLPEndpoint); ok {
		c.Tracing.OTLPEndpoint = value
	}
	if value, ok := lookupEnv(EnvEnvironment); ok {
		c.Tracing.Environment = value
	}
	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
}

// lookupEnv returns a trimmed, non-empty environment value.
func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
