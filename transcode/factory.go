package transcode

import (
	"fmt"
	"os/exec"

	"github.com/RyanBlaney/sonido-emotion/logging"
)

// NewDecoder builds the decoder selected by config.Backend. The auto backend
// uses ffmpeg when both ffmpeg and ffprobe are on PATH and falls back to the
// WAV reader otherwise.
func NewDecoder(config Config) (Decoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	backend := config.Backend
	if backend == BackendAuto {
		backend = BackendWAV
		if ffmpegOnPath(config) {
			backend = BackendFFmpeg
		}
		logging.Debug("Selected audio decoder", logging.Fields{
			"component": "transcode",
			"backend":   string(backend),
		})
	}

	switch backend {
	case BackendFFmpeg:
		d, err := NewFFmpegDecoder(config)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		d, err := NewWAVDecoder(config)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func ffmpegOnPath(config Config) bool {
	if _, err := exec.LookPath(config.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(config.FFprobePath)
	return err == nil
}
