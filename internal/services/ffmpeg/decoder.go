package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mixsplit/internal/logging"
	"mixsplit/internal/media/ffprobe"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/services"
)

const maxDecodeChannels = 2

// Decoded is a decoded recording with its probed duration.
type Decoded struct {
	Audio    *pcm.Buffer
	Duration time.Duration
	Codec    string
}

// NativeDecoder decodes a container in-process.
type NativeDecoder interface {
	DecodeFile(ctx context.Context, path string, channels int) (*pcm.Buffer, error)
}

// Decoder turns input recordings into PCM buffers. Formats registered in
// Native bypass ffmpeg when their channel layout fits.
type Decoder struct {
	FFmpeg  string
	FFprobe string
	Timeout time.Duration
	Native  map[string]NativeDecoder
	Logger  *slog.Logger

	// inspect is replaced in tests.
	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewDecoder constructs a decoder for the given binaries.
func NewDecoder(ffmpegBinary, ffprobeBinary string, timeout time.Duration) *Decoder {
	return &Decoder{FFmpeg: ffmpegBinary, FFprobe: ffprobeBinary, Timeout: timeout}
}

// Probe inspects path and returns its primary audio stream.
func (d *Decoder) Probe(ctx context.Context, path string) (ffprobe.Result, ffprobe.Stream, error) {
	inspect := d.inspect
	if inspect == nil {
		inspect = ffprobe.Inspect
	}
	result, err := inspect(ctx, d.FFprobe, path)
	if err != nil {
		return ffprobe.Result{}, ffprobe.Stream{}, services.Wrap(services.ErrDecodeFailure, "decode", "probe", path, err)
	}
	stream, err := result.PrimaryAudio()
	if err != nil {
		return ffprobe.Result{}, ffprobe.Stream{}, services.Wrap(services.ErrDecodeFailure, "decode", "probe", path, err)
	}
	if count := result.AudioStreamCount(); count > 1 && d.Logger != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.Logger), "multiple audio streams", "decode_stream_choice",
			logging.String(logging.FieldFile, path),
			logging.Int("audio_streams", count),
			logging.Int("stream_index", stream.Index),
			logging.Int("channels", stream.Channels),
			logging.String(logging.FieldErrorHint, "remux the wanted stream first if the wrong one was split"),
			logging.String(logging.FieldImpact, "only the widest audio stream is decoded"),
		)
	}
	return result, stream, nil
}

// Decode probes path and decodes its primary audio stream at the source
// sample rate, downmixed to at most two channels.
func (d *Decoder) Decode(ctx context.Context, path string) (*Decoded, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	result, stream, err := d.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	rate := stream.SampleRateHz()
	if rate <= 0 {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "probe", fmt.Sprintf("%s: unknown sample rate", path), nil)
	}
	duration := result.Duration()
	if native, ok := d.native(path); ok && stream.Channels > 0 && stream.Channels <= maxDecodeChannels {
		buf, err := native.DecodeFile(ctx, path, stream.Channels)
		if err != nil {
			return nil, err
		}
		if duration <= 0 {
			duration = buf.Duration()
		}
		return &Decoded{Audio: buf, Duration: duration, Codec: stream.CodecName}, nil
	}

	channels := stream.Channels
	if channels <= 0 || channels > maxDecodeChannels {
		channels = maxDecodeChannels
	}

	args := decodeArgs(path, stream.Index, rate, channels)
	cmd := exec.CommandContext(ctx, d.binary(), args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "ffmpeg", path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "ffmpeg", path, err)
	}
	buf, readErr := pcm.ReadRaw(stdout, rate, channels, expectedSamples(duration, rate, channels))
	waitErr := cmd.Wait()
	if (waitErr != nil || readErr != nil) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, services.Wrap(services.ErrTimeout, "decode", "ffmpeg", path, ctx.Err())
	}
	if waitErr != nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "ffmpeg", strings.TrimSpace(stderr.String()), waitErr)
	}
	if readErr != nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "ffmpeg", path, readErr)
	}
	if buf.Frames() == 0 {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "ffmpeg", fmt.Sprintf("%s: no audio frames", path), nil)
	}
	if duration <= 0 {
		duration = buf.Duration()
	}
	return &Decoded{Audio: buf, Duration: duration, Codec: stream.CodecName}, nil
}

// expectedSamples sizes the PCM slice from the probed duration with a small
// margin, so decoding allocates the samples once.
func expectedSamples(duration time.Duration, rate, channels int) int {
	if duration <= 0 {
		return 0
	}
	frames := duration.Seconds()*float64(rate)*1.01 + float64(rate)
	return int(frames) * channels
}

func (d *Decoder) native(path string) (NativeDecoder, bool) {
	if len(d.Native) == 0 {
		return nil, false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	native, ok := d.Native[ext]
	return native, ok && native != nil
}

func (d *Decoder) binary() string {
	if strings.TrimSpace(d.FFmpeg) == "" {
		return "ffmpeg"
	}
	return d.FFmpeg
}

func decodeArgs(path string, streamIndex, rate, channels int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:" + strconv.Itoa(streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"pipe:1",
	}
}
