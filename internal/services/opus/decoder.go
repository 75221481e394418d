package opus

import (
	"context"
	"errors"
	"io"
	"os"

	opuslib "gopkg.in/hraban/opus.v2"

	"mixsplit/internal/media/pcm"
	"mixsplit/internal/services"
)

// SampleRate is the fixed Opus decode rate.
const SampleRate = 48000

// 120 ms at 48 kHz, the largest Opus packet duration.
const maxFrameSize = 5760

// Decoder decodes Ogg Opus files to PCM.
type Decoder struct{}

// NewDecoder returns an Opus decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// DecodeFile decodes path into an interleaved buffer with the given channel
// count. Only mono and stereo streams are supported.
func (d *Decoder) DecodeFile(ctx context.Context, path string, channels int) (*pcm.Buffer, error) {
	if channels < 1 || channels > 2 {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "opus", "unsupported channel count", nil)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "opus", path, err)
	}
	defer file.Close()

	stream, err := opuslib.NewStream(file)
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "opus", path, err)
	}
	defer stream.Close()

	var capacity int
	if info, err := file.Stat(); err == nil {
		capacity = int(info.Size()) * 7
	}
	samples := make([]int16, 0, capacity)
	chunk := make([]int16, maxFrameSize*channels)
	for {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrTimeout, "decode", "opus", path, err)
		}
		n, err := stream.Read(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrDecodeFailure, "decode", "opus", path, err)
		}
		samples = append(samples, chunk[:n*channels]...)
	}
	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "opus", path+": no audio frames", nil)
	}
	return &pcm.Buffer{SampleRate: SampleRate, Channels: channels, Samples: samples}, nil
}
