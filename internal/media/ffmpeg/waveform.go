package ffmpeg

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"mediaflow/internal/services"
)

// WaveformSampleRate is the decode rate used for waveform peaks.
const WaveformSampleRate = 16000

// Waveform decodes input to pcmPath and reduces it to buckets peak values
// normalized to [0, 1].
func Waveform(ctx context.Context, ffmpegPath, input, pcmPath string, buckets int) ([]float64, error) {
	if err := DecodePCM(ctx, ffmpegPath, input, pcmPath, WaveformSampleRate); err != nil {
		return nil, err
	}
	file, err := os.Open(pcmPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "open decoded audio", pcmPath, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "stat decoded audio", pcmPath, err)
	}
	return Peaks(bufio.NewReader(file), info.Size()/2, buckets)
}

// Peaks reads total s16le samples from r, takes the maximum absolute value
// of each run of ceil(total/buckets) samples and scales the result so the
// loudest bucket is 1. Buckets past the end of short input stay 0.
func Peaks(r io.Reader, total int64, buckets int) ([]float64, error) {
	if buckets < 1 {
		return nil, services.Wrap(services.ErrValidation, "waveform", "peaks", "bucket count must be positive", nil)
	}
	out := make([]float64, buckets)
	if total <= 0 {
		return out, nil
	}
	step := (total + int64(buckets) - 1) / int64(buckets)

	var (
		sample [2]byte
		peak   float64
		index  int64
	)
	for ; index < total; index++ {
		if _, err := io.ReadFull(r, sample[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, services.Wrap(services.ErrExternalTool, "waveform", "read samples", "", err)
		}
		value := float64(int16(binary.LittleEndian.Uint16(sample[:])))
		if value < 0 {
			value = -value
		}
		bucket := index / step
		if value > out[bucket] {
			out[bucket] = value
		}
		if value > peak {
			peak = value
		}
	}
	if peak == 0 {
		return out, nil
	}
	for i := range out {
		out[i] /= peak
	}
	return out, nil
}
