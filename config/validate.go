package config

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-emotion/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.Features.Validate(); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.MaxDurationSeconds < 0 {
		return errors.New("audio.max_duration_seconds must not be negative")
	}
	if c.Audio.TimeoutSeconds <= 0 {
		return errors.New("audio.timeout_seconds must be positive")
	}
	if err := c.DecoderConfig().Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Server.ReadTimeoutSeconds < 0 || c.Server.WriteTimeoutSeconds < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return errors.New("server.shutdown_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
