package segment

import (
	"math"
	"time"

	"mixsplit/internal/media/pcm"
	"mixsplit/internal/services"
)

// Params controls silence detection.
type Params struct {
	// MinSilence is the shortest run of quiet audio treated as a gap.
	MinSilence time.Duration
	// ThresholdDB is the gap level relative to the loudest window, in dB.
	ThresholdDB float64
	// Window is the envelope analysis window.
	Window time.Duration
	// KeepSilence is padding left on each side of a segment, capped at half of
	// an interior gap.
	KeepSilence time.Duration
}

// DefaultParams returns the stock detection parameters.
func DefaultParams() Params {
	return Params{
		MinSilence:  2 * time.Second,
		ThresholdDB: -40,
		Window:      10 * time.Millisecond,
		KeepSilence: 200 * time.Millisecond,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.MinSilence <= 0 {
		p.MinSilence = def.MinSilence
	}
	if p.ThresholdDB >= 0 {
		p.ThresholdDB = def.ThresholdDB
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	if p.KeepSilence < 0 {
		p.KeepSilence = 0
	}
	return p
}

// Splitter cuts decoded mixes into tracks at silence gaps.
type Splitter struct {
	Params Params
}

// NewSplitter returns a splitter with missing parameters defaulted.
func NewSplitter(params Params) Splitter {
	return Splitter{Params: params.withDefaults()}
}

// Split scans the amplitude envelope of buf for gaps: maximal runs of windows
// at or below the threshold lasting at least MinSilence. Segments are the
// spans between consecutive gaps; leading and trailing gaps are trimmed. With
// no gaps the whole recording is returned as one degenerate segment. The
// result depends only on buf and the parameters.
func (s Splitter) Split(buf *pcm.Buffer) (Result, error) {
	params := s.Params.withDefaults()
	result := Result{Params: params}
	if buf == nil || buf.SampleRate <= 0 || buf.Frames() == 0 {
		return result, services.Wrap(services.ErrDecodeFailure, "split", "envelope", "no decoded audio", nil)
	}

	frames := buf.Frames()
	window := pcm.DurationToFrames(params.Window, buf.SampleRate)
	if window < 1 {
		window = 1
	}
	levels := buf.Envelope(window)

	reference := math.Inf(-1)
	for _, level := range levels {
		if level > reference {
			reference = level
		}
	}
	if math.IsInf(reference, -1) {
		result.Silent = true
		result.Degenerate = true
		result.Segments = []*TrackSegment{newSegment(nil, 1, Span{0, frames}, buf)}
		return result, nil
	}
	threshold := reference + params.ThresholdDB
	minFrames := pcm.DurationToFrames(params.MinSilence, buf.SampleRate)

	gaps := findGaps(levels, threshold, window, frames, minFrames)
	if len(gaps) == 0 {
		result.Degenerate = true
		result.Segments = []*TrackSegment{newSegment(nil, 1, Span{0, frames}, buf)}
		return result, nil
	}

	keep := pcm.DurationToFrames(params.KeepSilence, buf.SampleRate)
	spans, trimmed := carve(gaps, frames, keep)
	if len(spans) == 0 {
		result.Silent = true
		result.Degenerate = true
		result.Segments = []*TrackSegment{newSegment(nil, 1, Span{0, frames}, buf)}
		return result, nil
	}
	for i, span := range spans {
		result.Segments = append(result.Segments, newSegment(nil, i+1, span, buf))
	}
	result.Gaps = trimmed
	return result, nil
}

func findGaps(levels []float64, threshold float64, window, frames, minFrames int64) []Span {
	var gaps []Span
	runStart := -1
	closeRun := func(endWindow int) {
		if runStart < 0 {
			return
		}
		span := Span{Start: int64(runStart) * window, End: int64(endWindow) * window}
		if span.End > frames {
			span.End = frames
		}
		if span.Len() >= minFrames {
			gaps = append(gaps, span)
		}
		runStart = -1
	}
	for i, level := range levels {
		if level <= threshold {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		closeRun(i)
	}
	closeRun(len(levels))
	return gaps
}

// carve returns the segment spans between gaps, each padded into its
// neighbouring gaps by keep frames, and the gap remainders.
func carve(gaps []Span, frames, keep int64) ([]Span, []Span) {
	var raw []Span
	cursor := int64(0)
	for _, gap := range gaps {
		if gap.Start > cursor {
			raw = append(raw, Span{cursor, gap.Start})
		}
		cursor = gap.End
	}
	if cursor < frames {
		raw = append(raw, Span{cursor, frames})
	}
	if len(raw) == 0 {
		return nil, gaps
	}

	// Padding available on each side of every gap.
	type pad struct{ before, after int64 }
	pads := make([]pad, len(gaps))
	for i, gap := range gaps {
		leading := gap.Start == 0
		trailing := gap.End == frames
		limit := keep
		switch {
		case leading || trailing:
			if gap.Len() < limit {
				limit = gap.Len()
			}
		default:
			if half := gap.Len() / 2; half < limit {
				limit = half
			}
		}
		if !leading {
			pads[i].before = limit
		}
		if !trailing {
			pads[i].after = limit
		}
	}

	spans := make([]Span, len(raw))
	copy(spans, raw)
	for i, gap := range gaps {
		for j := range spans {
			if raw[j].End == gap.Start {
				spans[j].End += pads[i].before
			}
			if raw[j].Start == gap.End {
				spans[j].Start -= pads[i].after
			}
		}
	}

	var remainders []Span
	for i, gap := range gaps {
		rem := Span{Start: gap.Start + pads[i].before, End: gap.End - pads[i].after}
		if rem.Len() > 0 {
			remainders = append(remainders, rem)
		}
	}
	return spans, remainders
}
