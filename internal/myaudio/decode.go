package myaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
)

// maxStderrBytes bounds how much ffmpeg stderr output is retained for error
// reporting.
const maxStderrBytes = 4096

// DecodeToWaveform decodes an encoded audio buffer into a mono waveform at the
// configured target sample rate. The declared format must be on the accepted
// list (case-insensitive) and the buffer must not exceed the configured size
// limit. WAV input is decoded natively; everything else goes through ffmpeg.
//
// Decoding runs entirely through pipes, so there are no temporary files to
// clean up on any exit path. The context bounds the external decode.
func DecodeToWaveform(ctx context.Context, settings *conf.Settings, data []byte, format string) (*Waveform, error) {
	if len(data) == 0 {
		return nil, errors.Newf("empty audio buffer").
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}
	if int64(len(data)) > settings.Audio.MaxBytes {
		return nil, errors.Newf("audio buffer of %d bytes exceeds limit of %d", len(data), settings.Audio.MaxBytes).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("size_bytes", len(data)).
			Context("limit_bytes", settings.Audio.MaxBytes).
			Build()
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if !settings.IsSupportedFormat(format) {
		return nil, errors.Newf("unsupported audio format %q", format).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("format", format).
			Build()
	}

	if format == "wav" {
		return decodeWAV(data, settings.Audio.SampleRate)
	}

	return decodeWithFfmpeg(ctx, settings, data)
}

// decodeWithFfmpeg pipes the encoded buffer through ffmpeg and converts the
// resulting s16le mono PCM stream to normalized float32 samples.
func decodeWithFfmpeg(ctx context.Context, settings *conf.Settings, data []byte) (*Waveform, error) {
	targetRate := settings.Audio.SampleRate

	cmd := exec.CommandContext(ctx, settings.Audio.FfmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0", // read encoded audio from stdin
		"-f", "s16le", // signed 16-bit little-endian PCM
		"-acodec", "pcm_s16le",
		"-ac", "1", // mono
		"-ar", strconv.Itoa(targetRate),
		"pipe:1", // write PCM to stdout
	)

	var pcm bytes.Buffer
	stderr := newBoundedBuffer(maxStderrBytes)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &pcm
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(ctx.Err()).
				Component("myaudio").
				Category(errors.CategoryCancellation).
				Context("operation", "ffmpeg-decode").
				Build()
		}
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return nil, errors.Newf("ffmpeg not found at %q", settings.Audio.FfmpegPath).
				Component("myaudio").
				Category(errors.CategoryAudioDecode).
				Build()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, errors.Newf("ffmpeg decode failed: %s", detail).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	if pcm.Len() == 0 {
		return nil, errors.Newf("ffmpeg produced no output").
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	return pcmS16leToWaveform(pcm.Bytes(), targetRate), nil
}

// pcmS16leToWaveform converts raw s16le PCM bytes into a normalized waveform.
// A trailing odd byte is dropped.
func pcmS16leToWaveform(pcm []byte, sampleRate int) *Waveform {
	sampleCount := len(pcm) / 2
	samples := make([]float32, sampleCount)
	for i := 0; i < sampleCount; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return &Waveform{Samples: samples, SampleRate: sampleRate}
}

// boundedBuffer retains at most limit bytes of written data, discarding the
// oldest bytes when the limit is exceeded.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n, err := b.buf.Write(p)
	if b.buf.Len() > b.limit {
		excess := b.buf.Len() - b.limit
		b.buf.Next(excess)
	}
	return n, err
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}

var _ fmt.Stringer = (*boundedBuffer)(nil)
