package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"mediaflow/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index            int    `json:"index"`
	CodecName        string `json:"codec_name"`
	CodecType        string `json:"codec_type"`
	Duration         string `json:"duration"`
	BitRate          string `json:"bit_rate"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	AvgFrameRate     string `json:"avg_frame_rate"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	PixFmt           string `json:"pix_fmt"`
	SampleFmt        string `json:"sample_fmt"`
	SampleRate       string `json:"sample_rate"`
	Channels         int    `json:"channels"`
	ChannelLayout    string `json:"channel_layout"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Metadata is the summary of the first video and audio streams.
type Metadata struct {
	Duration         float64 `json:"duration,omitempty"`
	VideoCodec       string  `json:"video_codec,omitempty"`
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	FPS              float64 `json:"fps,omitempty"`
	BitRate          int64   `json:"bit_rate,omitempty"`
	BitsPerRawSample int     `json:"bits_per_raw_sample,omitempty"`
	PixFmt           string  `json:"pix_fmt,omitempty"`
	AudioCodec       string  `json:"audio_codec,omitempty"`
	SampleFmt        string  `json:"sample_fmt,omitempty"`
	ChannelLayout    string  `json:"channel_layout,omitempty"`
	SampleRate       int     `json:"sample_rate,omitempty"`
	Size             int64   `json:"size"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", strings.TrimSpace(stderr.String()), err)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "parse output", "", err)
	}
	return result, nil
}

// Probe inspects path and summarizes it. Size is the on-disk size of path.
func Probe(ctx context.Context, binary, path string) (Metadata, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return Metadata{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrNotFound, "ffprobe", "stat input", path, err)
	}
	meta := result.Metadata()
	meta.Size = info.Size()
	return meta, nil
}

// Metadata flattens the first video and first audio stream. Stream duration
// falls back to the container duration for formats that only report it there.
func (r Result) Metadata() Metadata {
	var meta Metadata
	if video, ok := r.firstStream("video"); ok {
		meta.Duration = parseFloat(video.Duration)
		if meta.Duration == 0 || math.IsNaN(meta.Duration) {
			meta.Duration = r.DurationSeconds()
		}
		meta.VideoCodec = video.CodecName
		meta.Width = video.Width
		meta.Height = video.Height
		meta.FPS = parseRate(video.AvgFrameRate)
		meta.BitRate = parseInt(video.BitRate)
		if meta.BitRate == 0 {
			meta.BitRate = r.BitRate()
		}
		meta.BitsPerRawSample = int(parseInt(video.BitsPerRawSample))
		meta.PixFmt = video.PixFmt
	}
	if audio, ok := r.firstStream("audio"); ok {
		meta.AudioCodec = audio.CodecName
		meta.SampleFmt = audio.SampleFmt
		meta.ChannelLayout = audio.ChannelLayout
		meta.SampleRate = int(parseInt(audio.SampleRate))
		if meta.Duration == 0 {
			meta.Duration = r.DurationSeconds()
		}
	}
	if math.IsNaN(meta.Duration) {
		meta.Duration = 0
	}
	return meta
}

func (r Result) firstStream(codecType string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	return parseInt(r.Format.BitRate)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func parseInt(value string) int64 {
	parsed := parseFloat(value)
	if math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return int64(parsed)
}

// parseRate converts an ffprobe rational such as "30000/1001".
func parseRate(value string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		rate := parseFloat(value)
		if math.IsNaN(rate) {
			return 0
		}
		return rate
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return 0
	}
	return n / d
}
