package pcm

import (
	"math"
	"time"
)

// Buffer holds interleaved signed 16-bit PCM. Slices of a buffer share its
// backing array.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames (one sample per channel).
func (b *Buffer) Frames() int64 {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return int64(len(b.Samples) / b.Channels)
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return FramesToDuration(b.Frames(), b.SampleRate)
}

// Bytes returns the in-memory size of the sample data.
func (b *Buffer) Bytes() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Samples)) * 2
}

// Slice returns a view of frames [start, end). Bounds are clamped.
func (b *Buffer) Slice(start, end int64) *Buffer {
	frames := b.Frames()
	if start < 0 {
		start = 0
	}
	if end > frames {
		end = frames
	}
	if start > end {
		start = end
	}
	ch := int64(b.Channels)
	return &Buffer{
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
		Samples:    b.Samples[start*ch : end*ch],
	}
}

// Excerpt returns a view of at most length centred on the middle of the
// buffer, along with its starting frame.
func (b *Buffer) Excerpt(length time.Duration) (*Buffer, int64) {
	frames := b.Frames()
	want := DurationToFrames(length, b.SampleRate)
	if want <= 0 || want >= frames {
		return b.Slice(0, frames), 0
	}
	start := (frames - want) / 2
	return b.Slice(start, start+want), start
}

// Release drops the reference to the sample data.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.Samples = nil
}

// Envelope returns the RMS level of consecutive windows of the given frame
// length, in dBFS. Silent windows report -Inf. The last window may be short.
func (b *Buffer) Envelope(windowFrames int64) []float64 {
	frames := b.Frames()
	if windowFrames <= 0 || frames == 0 {
		return nil
	}
	count := (frames + windowFrames - 1) / windowFrames
	levels := make([]float64, 0, count)
	ch := int64(b.Channels)
	for start := int64(0); start < frames; start += windowFrames {
		end := start + windowFrames
		if end > frames {
			end = frames
		}
		var sum float64
		for _, s := range b.Samples[start*ch : end*ch] {
			v := float64(s)
			sum += v * v
		}
		n := float64((end - start) * ch)
		levels = append(levels, toDBFS(math.Sqrt(sum/n)))
	}
	return levels
}

const fullScale = 32768.0

func toDBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/fullScale)
}

// FramesToDuration converts a frame count at rate to a duration.
func FramesToDuration(frames int64, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	seconds := frames / int64(rate)
	rem := frames % int64(rate)
	return time.Duration(seconds)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate)
}

// DurationToFrames converts a duration to a frame count at rate, rounding down.
func DurationToFrames(d time.Duration, rate int) int64 {
	if rate <= 0 || d <= 0 {
		return 0
	}
	seconds := int64(d / time.Second)
	rem := int64(d % time.Second)
	return seconds*int64(rate) + rem*int64(rate)/int64(time.Second)
}
