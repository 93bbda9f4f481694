package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// WAVDecoder reads integer PCM and IEEE float WAV files without external binaries.
type WAVDecoder struct {
	config       Config
	interpolator *common.Interpolator
	logger       logging.Logger
}

// NewWAVDecoder creates a WAV-only decoder.
func NewWAVDecoder(config Config) (*WAVDecoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	method, err := common.ParseInterpolation(config.Interpolation)
	if err != nil {
		return nil, err
	}
	return &WAVDecoder{
		config:       config,
		interpolator: common.NewInterpolator(method),
		logger: logging.WithFields(logging.Fields{
			"component": "wav_decoder",
		}),
	}, nil
}

// Name implements Decoder.
func (d *WAVDecoder) Name() string {
	return string(BackendWAV)
}

// DecodeFile reads path, averages its channels and resamples to the target rate.
func (d *WAVDecoder) DecodeFile(ctx context.Context, path string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"path":     path,
	})

	file, err := os.Open(path)
	if err != nil {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "open audio file", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "invalid WAV file", decoder.Err())
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	sourceRate := int(decoder.SampleRate)
	if channels <= 0 || sourceRate <= 0 {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode",
			fmt.Sprintf("invalid WAV header: %d channels at %d Hz", channels, sourceRate), nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mono []float64
	var codec string
	switch decoder.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible:
		mono, err = readIntPCM(decoder, channels, bitDepth)
		codec = fmt.Sprintf("pcm_s%dle", bitDepth)
	case wavFormatIEEEFloat:
		mono, err = readFloatPCM(decoder, channels, bitDepth)
		codec = fmt.Sprintf("pcm_f%dle", bitDepth)
	default:
		err = emotion.Wrap(emotion.ErrDecode, "decode",
			fmt.Sprintf("unsupported WAV encoding %d, only PCM and IEEE float are read", decoder.WavAudioFormat), nil)
	}
	if err != nil {
		return nil, err
	}

	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(sourceRate))
		if limit > 0 && limit < len(mono) {
			mono = mono[:limit]
		}
	}

	samples := mono
	if sourceRate != d.config.TargetSampleRate {
		samples = d.interpolator.ResampleSignal(mono, sourceRate, d.config.TargetSampleRate)
	}
	if len(samples) == 0 {
		return nil, emotion.Wrap(emotion.ErrEmptyAudio, "decode", "no audio samples after resampling", nil)
	}

	logger.Debug("WAV decode completed", logging.Fields{
		"input_sample_rate":  sourceRate,
		"input_channels":     channels,
		"bit_depth":          bitDepth,
		"output_samples":     len(samples),
		"output_sample_rate": d.config.TargetSampleRate,
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   durationOf(len(samples), d.config.TargetSampleRate),
		Timestamp:  time.Now(),
		Metadata: &Metadata{
			Path:        path,
			Decoder:     d.Name(),
			Format:      "wav",
			Codec:       codec,
			ContentType: "audio/wav",
			SampleRate:  sourceRate,
			Channels:    channels,
			BitDepth:    bitDepth,
			Bitrate:     sourceRate * channels * bitDepth,
			Duration:    float64(len(mono)) / float64(sourceRate),
		},
	}, nil
}

func readIntPCM(decoder *wav.Decoder, channels, bitDepth int) ([]float64, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", fmt.Sprintf("unsupported bit depth %d", bitDepth), nil)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "read PCM data", err)
	}
	if buf == nil || len(buf.Data) < channels {
		return nil, emotion.Wrap(emotion.ErrEmptyAudio, "decode", "no audio samples decoded", nil)
	}
	return downmix(buf.Data, channels, bitDepth), nil
}

// readFloatPCM reads 32- or 64-bit little-endian IEEE float frames straight
// from the data chunk and averages them into mono.
func readFloatPCM(decoder *wav.Decoder, channels, bitDepth int) ([]float64, error) {
	if bitDepth != 32 && bitDepth != 64 {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", fmt.Sprintf("unsupported float bit depth %d", bitDepth), nil)
	}

	if err := decoder.FwdToPCM(); err != nil || decoder.PCMChunk == nil {
		if err == nil {
			err = decoder.Err()
		}
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "locate PCM data", err)
	}
	raw, err := io.ReadAll(decoder.PCMChunk)
	if err != nil {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "read PCM data", err)
	}

	width := bitDepth / 8
	frames := len(raw) / (width * channels)
	if frames == 0 {
		return nil, emotion.Wrap(emotion.ErrEmptyAudio, "decode", "no audio samples decoded", nil)
	}

	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			b := raw[(i*channels+c)*width:]
			if width == 4 {
				sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			} else {
				sum += math.Float64frombits(binary.LittleEndian.Uint64(b))
			}
		}
		out[i] = sum / float64(channels)
	}
	return out, nil
}

// downmix averages interleaved integer frames into mono samples in [-1, 1).
// 8-bit WAV data is unsigned and is recentred first.
func downmix(data []int, channels, bitDepth int) []float64 {
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(data) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(data[i*channels+c] - offset)
		}
		out[i] = sum / float64(channels) * scale
	}
	return out
}
