package segment

import (
	"time"

	"mixsplit/internal/inputs"
	"mixsplit/internal/media/pcm"
)

// Span is a half-open frame range [Start, End) in a parent's timeline.
type Span struct {
	Start int64
	End   int64
}

// Len returns the span length in frames.
func (s Span) Len() int64 { return s.End - s.Start }

// TrackSegment is one candidate track cut from a parent recording. Audio is a
// view into the parent's decoded buffer and is only valid during the
// Split-Phase of the owning batch.
type TrackSegment struct {
	Parent  *inputs.InputFile
	Ordinal int
	Span    Span
	Start   time.Duration
	End     time.Duration
	Audio   *pcm.Buffer
}

// Duration returns the segment length.
func (s *TrackSegment) Duration() time.Duration { return s.End - s.Start }

// Result is the output of splitting one recording.
type Result struct {
	Segments []*TrackSegment
	// Gaps are the silence spans left between and around segments after
	// keep-silence padding was taken. Segments plus gaps tile the recording.
	Gaps []Span
	// Degenerate is set when a mix yielded no qualifying gaps, so it is
	// delivered whole.
	Degenerate bool
	// Silent is set when no window rose above digital silence.
	Silent bool
	Params Params
}

// Attach sets the parent on every segment.
func (r *Result) Attach(parent *inputs.InputFile) {
	for _, seg := range r.Segments {
		seg.Parent = parent
	}
}

// Release drops the segments' audio views.
func (r *Result) Release() {
	for _, seg := range r.Segments {
		seg.Audio = nil
	}
}

// Whole synthesizes the single whole-file segment used for single tracks.
func Whole(parent *inputs.InputFile, buf *pcm.Buffer) *TrackSegment {
	return newSegment(parent, 1, Span{Start: 0, End: buf.Frames()}, buf)
}

func newSegment(parent *inputs.InputFile, ordinal int, span Span, buf *pcm.Buffer) *TrackSegment {
	return &TrackSegment{
		Parent:  parent,
		Ordinal: ordinal,
		Span:    span,
		Start:   pcm.FramesToDuration(span.Start, buf.SampleRate),
		End:     pcm.FramesToDuration(span.End, buf.SampleRate),
		Audio:   buf.Slice(span.Start, span.End),
	}
}
