package emotion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode marks audio that could not be read or parsed.
	ErrDecode = errors.New("audio decode failed")
	// ErrEmptyAudio marks a decoded buffer with no samples.
	ErrEmptyAudio = errors.New("empty audio")
	// ErrModelUnavailable marks a scorer that could not be loaded or run.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrShapeMismatch marks a feature or score vector of the wrong length.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidScores marks a score vector that cannot be decided, such as one containing NaN.
	ErrInvalidScores = errors.New("invalid scores")
)

// Wrap tags err with one of the sentinels above, prefixing the stage and a
// short message. A nil marker is treated as ErrDecode.
func Wrap(marker error, stage, message string, err error) error {
	if marker == nil {
		marker = ErrDecode
	}
	detail := buildDetail(stage, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsClientError reports whether err was caused by the submitted audio rather
// than the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrEmptyAudio)
}

func buildDetail(stage, message string) string {
	parts := make([]string, 0, 2)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "emotion pipeline failure"
	}
	return strings.Join(parts, ": ")
}
