package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mediaflow/internal/activity"
	"mediaflow/internal/services"
)

const stderrLimit = 4 << 10

// run executes ffmpeg with args, heartbeating on every progress report.
func run(ctx context.Context, binary, operation string, args ...string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, binary, full...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, "open stdout", err)
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, "start "+binary, err)
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "progress=") {
			activity.RecordHeartbeat(ctx)
		}
	}
	_, _ = io.Copy(io.Discard, stdout)
	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// SpriteOptions describes a sprite sheet run.
type SpriteOptions struct {
	Duration float64
	Columns  int
	Rows     int
	Count    int
	Width    int
	Height   int
}

// Interval is the time between sampled frames so Count sheets of
// Columns x Rows tiles cover the whole duration.
func (o SpriteOptions) Interval() float64 {
	frames := o.Count * o.Columns * o.Rows
	if frames <= 0 || o.Duration <= 0 {
		return 0
	}
	return o.Duration / float64(frames)
}

func (o SpriteOptions) filter() string {
	parts := make([]string, 0, 3)
	if interval := o.Interval(); interval > 0 {
		parts = append(parts, "fps="+strconv.FormatFloat(1/interval, 'f', 6, 64))
	}
	parts = append(parts,
		fmt.Sprintf("tile=%dx%d", o.Columns, o.Rows),
		fmt.Sprintf("scale=%d:%d", o.Width, o.Height),
	)
	return strings.Join(parts, ",")
}

// Sprite renders up to opts.Count PNG sheets into outDir and returns their
// paths in sheet order.
func Sprite(ctx context.Context, binary, input, outDir string, opts SpriteOptions) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ffmpeg", "sprite", "create output directory", err)
	}
	pattern := filepath.Join(outDir, "%03d.png")
	if err := run(ctx, binary, "sprite",
		"-i", input,
		"-vf", opts.filter(),
		"-frames:v", strconv.Itoa(opts.Count),
		pattern,
	); err != nil {
		return nil, err
	}
	return numberedOutputs(outDir, ".png")
}

// numberedOutputs lists files named <n><ext> in dir ordered by n.
func numberedOutputs(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "list outputs", dir, err)
	}
	type numbered struct {
		n    int
		path string
	}
	var outputs []numbered
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		outputs = append(outputs, numbered{n: n, path: filepath.Join(dir, name)})
	}
	if len(outputs) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "sprite", "no frames produced", nil)
	}
	slices.SortFunc(outputs, func(a, b numbered) int { return a.n - b.n })
	paths := make([]string, len(outputs))
	for i, o := range outputs {
		paths[i] = o.path
	}
	return paths, nil
}

// Transcode re-encodes input into output using the given codecs. The
// container follows output's extension.
func Transcode(ctx context.Context, binary, input, output, videoCodec, audioCodec string) error {
	return run(ctx, binary, "transcode",
		"-i", input,
		"-codec:v", videoCodec,
		"-codec:a", audioCodec,
		output,
	)
}

// DecodePCM writes input's audio as raw signed 16-bit little-endian mono
// samples to output.
func DecodePCM(ctx context.Context, binary, input, output string, sampleRate int) error {
	return run(ctx, binary, "decode audio",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		output,
	)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
