package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"mediaflow/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestMetadataFlattensFirstStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{
				CodecType: "video", CodecName: "h264", Duration: "10.5", Width: 1920, Height: 1080,
				AvgFrameRate: "30000/1001", BitRate: "4000000", BitsPerRawSample: "8", PixFmt: "yuv420p",
			},
			{CodecType: "audio", CodecName: "aac", SampleFmt: "fltp", ChannelLayout: "stereo", SampleRate: "48000"},
			{CodecType: "audio", CodecName: "ac3"},
		},
	}
	meta := result.Metadata()
	if meta.Duration != 10.5 || meta.VideoCodec != "h264" || meta.Width != 1920 || meta.Height != 1080 {
		t.Fatalf("unexpected video fields: %+v", meta)
	}
	if math.Abs(meta.FPS-29.97) > 0.01 {
		t.Fatalf("fps = %v", meta.FPS)
	}
	if meta.BitRate != 4000000 || meta.BitsPerRawSample != 8 || meta.PixFmt != "yuv420p" {
		t.Fatalf("unexpected video encoding fields: %+v", meta)
	}
	if meta.AudioCodec != "aac" || meta.SampleFmt != "fltp" || meta.ChannelLayout != "stereo" || meta.SampleRate != 48000 {
		t.Fatalf("unexpected audio fields: %+v", meta)
	}
}

func TestMetadataFallsBackToContainer(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", CodecName: "vp9", AvgFrameRate: "0/0"}},
		Format:  Format{Duration: "42.0", BitRate: "900"},
	}
	meta := result.Metadata()
	if meta.Duration != 42 {
		t.Fatalf("duration = %v, want container duration", meta.Duration)
	}
	if meta.BitRate != 900 {
		t.Fatalf("bit rate = %d, want container bit rate", meta.BitRate)
	}
	if meta.FPS != 0 {
		t.Fatalf("fps = %v, want 0 for 0/0", meta.FPS)
	}
	if meta.AudioCodec != "" {
		t.Fatalf("unexpected audio codec %q", meta.AudioCodec)
	}
}

func TestProbeUsesStubBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n{\"streams\":[{\"codec_type\":\"video\",\"codec_name\":\"h264\",\"duration\":\"2.0\",\"width\":64,\"height\":48,\"avg_frame_rate\":\"25/1\"}],\"format\":{\"duration\":\"2.0\"}}\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	input := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(input, make([]byte, 1234), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	meta, err := Probe(context.Background(), stub, input)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if meta.Size != 1234 || meta.FPS != 25 || meta.Width != 64 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestInspectReportsToolFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err := Inspect(context.Background(), stub, filepath.Join(dir, "missing.mp4"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
