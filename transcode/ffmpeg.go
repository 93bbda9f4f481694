package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// FFmpegDecoder decodes any format ffmpeg understands by piping raw float64
// samples out of an ffmpeg subprocess.
type FFmpegDecoder struct {
	config Config
	logger logging.Logger
}

// probeResult holds detected audio properties from ffprobe
type probeResult struct {
	SampleRate int
	Channels   int
	Codec      string
	Duration   float64
	Bitrate    int
	Format     string
}

// NewFFmpegDecoder creates a decoder that shells out to ffmpeg and ffprobe.
func NewFFmpegDecoder(config Config) (*FFmpegDecoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &FFmpegDecoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "ffmpeg_decoder",
		}),
	}, nil
}

// Name implements Decoder.
func (d *FFmpegDecoder) Name() string {
	return string(BackendFFmpeg)
}

// DecodeFile probes path and decodes its first audio stream to mono samples
// at the target rate.
func (d *FFmpegDecoder) DecodeFile(ctx context.Context, path string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"path":     path,
	})

	logger.Debug("Starting audio file decode")

	if _, err := os.Stat(path); err != nil {
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "open audio file", err)
	}

	metadata, err := d.probe(ctx, path)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	args := d.buildArgs(path, metadata)

	runCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.config.FFmpegPath, args...)

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "FFmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, emotion.Wrap(emotion.ErrDecode, "decode",
				fmt.Sprintf("ffmpeg: %s", strings.TrimSpace(string(exitError.Stderr))), err)
		}
		return nil, emotion.Wrap(emotion.ErrDecode, "decode", "ffmpeg", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, emotion.Wrap(emotion.ErrEmptyAudio, "decode", "no audio samples decoded", nil)
	}

	duration := durationOf(len(samples), d.config.TargetSampleRate)

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_samples":     len(samples),
		"output_sample_rate": d.config.TargetSampleRate,
		"output_duration":    duration.Seconds(),
		"decode_time":        time.Since(start).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   duration,
		Timestamp:  time.Now(),
		Metadata: &Metadata{
			Path:        path,
			Decoder:     d.Name(),
			Format:      metadata.Format,
			Codec:       metadata.Codec,
			ContentType: contentTypeFromCodec(metadata.Codec),
			SampleRate:  metadata.SampleRate,
			Channels:    metadata.Channels,
			Bitrate:     metadata.Bitrate,
			Duration:    metadata.Duration,
		},
	}, nil
}

// probe uses ffprobe to read the first audio stream's properties.
func (d *FFmpegDecoder) probe(ctx context.Context, path string) (*probeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, d.config.FFprobePath, args...).Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, emotion.Wrap(emotion.ErrDecode, "probe",
				fmt.Sprintf("ffprobe: %s", strings.TrimSpace(string(exitError.Stderr))), err)
		}
		return nil, emotion.Wrap(emotion.ErrDecode, "probe", "ffprobe", err)
	}

	return parseProbeOutput(output)
}

// parseProbeOutput parses ffprobe JSON to extract audio metadata
func parseProbeOutput(jsonData []byte) (*probeResult, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, emotion.Wrap(emotion.ErrDecode, "probe", "parse ffprobe output", err)
	}

	if len(probe.Streams) == 0 {
		return nil, emotion.Wrap(emotion.ErrDecode, "probe", "no audio streams found", nil)
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, emotion.Wrap(emotion.ErrDecode, "probe",
			fmt.Sprintf("stream is not audio type: %s", stream.CodecType), nil)
	}
	if stream.Channels <= 0 {
		return nil, emotion.Wrap(emotion.ErrDecode, "probe",
			fmt.Sprintf("invalid channel count: %d", stream.Channels), nil)
	}

	// Missing fields are reported as zero, ffmpeg still decodes the stream.
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &probeResult{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildArgs builds the ffmpeg arguments for a mono f64le decode of path.
func (d *FFmpegDecoder) buildArgs(path string, metadata *probeResult) []string {
	args := []string{
		"-v", "error",
		"-i", path,
		"-map", "0:a:0",
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	var filters []string
	if metadata != nil && metadata.SampleRate != d.config.TargetSampleRate {
		if f := resampleFilter(d.config.ResampleQuality); f != "" {
			filters = append(filters, f)
		}
	}
	if d.config.EnableNormalization {
		if f := d.normalizationFilter(); f != "" {
			filters = append(filters, f)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	return append(args, "pipe:1")
}

func resampleFilter(quality string) string {
	switch strings.ToLower(quality) {
	case "fast":
		return "aresample=resampler=soxr:precision=16"
	case "medium":
		return "aresample=resampler=soxr:precision=20"
	case "high":
		return "aresample=resampler=soxr:precision=28"
	default:
		return ""
	}
}

func (d *FFmpegDecoder) normalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		// EBU R128 loudness normalization
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	default:
		return ""
	}
}

// Available checks that the configured ffmpeg and ffprobe binaries run.
func (d *FFmpegDecoder) Available(ctx context.Context) error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s not usable: %w", bin, err)
		}
	}
	return nil
}

// bytesToFloat64 converts raw little-endian float64 bytes to samples,
// dropping a trailing partial sample.
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	if sampleCount == 0 {
		return nil
	}

	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}
