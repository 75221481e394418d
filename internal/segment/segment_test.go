package segment_test

import (
	"errors"
	"testing"
	"time"

	"mixsplit/internal/inputs"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/segment"
	"mixsplit/internal/services"
)

const rate = 1000

// part describes a stretch of synthetic audio: amplitude zero is silence.
type part struct {
	seconds   float64
	amplitude int16
}

func synth(parts ...part) *pcm.Buffer {
	var samples []int16
	for _, p := range parts {
		n := int(p.seconds * rate)
		for i := 0; i < n; i++ {
			v := p.amplitude
			if i%2 == 1 {
				v = -v
			}
			samples = append(samples, v)
		}
	}
	return &pcm.Buffer{SampleRate: rate, Channels: 1, Samples: samples}
}

func assertTiles(t *testing.T, buf *pcm.Buffer, result segment.Result) {
	t.Helper()
	spans := make([]segment.Span, 0, len(result.Segments)+len(result.Gaps))
	for i, seg := range result.Segments {
		if seg.Ordinal != i+1 {
			t.Fatalf("segment %d has ordinal %d", i, seg.Ordinal)
		}
		if seg.Span.Len() <= 0 {
			t.Fatalf("segment %d is empty", seg.Ordinal)
		}
		if seg.Audio.Frames() != seg.Span.Len() {
			t.Fatalf("segment %d audio frames %d differ from span %d", seg.Ordinal, seg.Audio.Frames(), seg.Span.Len())
		}
		if i > 0 && seg.Span.Start < result.Segments[i-1].Span.End {
			t.Fatalf("segment %d overlaps its predecessor", seg.Ordinal)
		}
		spans = append(spans, seg.Span)
	}
	spans = append(spans, result.Gaps...)
	// Sort by start with a simple insertion sort; inputs are tiny.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	cursor := int64(0)
	for _, span := range spans {
		if span.Start != cursor {
			t.Fatalf("tiling broken at frame %d (next span starts at %d)", cursor, span.Start)
		}
		cursor = span.End
	}
	if cursor != buf.Frames() {
		t.Fatalf("tiling ends at %d, want %d", cursor, buf.Frames())
	}
}

func TestClassifyThreshold(t *testing.T) {
	c := segment.NewClassifier(0)
	tests := []struct {
		duration time.Duration
		want     inputs.Classification
	}{
		{300 * time.Second, inputs.SingleTrack},
		{8*time.Minute - time.Millisecond, inputs.SingleTrack},
		{8 * time.Minute, inputs.Mix},
		{600 * time.Second, inputs.Mix},
		{0, inputs.SingleTrack},
	}
	for _, tt := range tests {
		for i := 0; i < 2; i++ {
			if got := c.Classify(tt.duration); got != tt.want {
				t.Fatalf("Classify(%s) = %s, want %s", tt.duration, got, tt.want)
			}
		}
	}
	if got := (segment.Classifier{Threshold: time.Minute}).Classify(time.Minute); got != inputs.Mix {
		t.Fatalf("custom threshold should classify boundary as mix, got %s", got)
	}
}

func TestSplitFourTracksFromTenMinuteMix(t *testing.T) {
	buf := synth(
		part{147, 8000}, part{3, 0},
		part{147, 8000}, part{3, 0},
		part{147, 8000}, part{3, 0},
		part{150, 8000},
	)
	if buf.Duration() != 600*time.Second {
		t.Fatalf("unexpected fixture duration %s", buf.Duration())
	}
	splitter := segment.NewSplitter(segment.DefaultParams())
	result, err := splitter.Split(buf)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if result.Degenerate {
		t.Fatal("expected a real split")
	}
	if len(result.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(result.Segments))
	}
	if len(result.Gaps) != 3 {
		t.Fatalf("expected 3 trimmed gaps, got %d", len(result.Gaps))
	}
	first := result.Segments[0]
	if first.Start != 0 || first.End != 147*time.Second+200*time.Millisecond {
		t.Fatalf("unexpected first segment bounds %s-%s", first.Start, first.End)
	}
	second := result.Segments[1]
	if second.Start != 150*time.Second-200*time.Millisecond {
		t.Fatalf("unexpected second segment start %s", second.Start)
	}
	assertTiles(t, buf, result)

	again, err := splitter.Split(buf)
	if err != nil {
		t.Fatalf("second Split returned error: %v", err)
	}
	for i := range result.Segments {
		if result.Segments[i].Span != again.Segments[i].Span {
			t.Fatalf("segment %d boundaries differ between runs", i+1)
		}
	}
}

func TestSplitWithoutGapsIsDegenerate(t *testing.T) {
	buf := synth(part{30, 8000}, part{1, 0}, part{30, 8000})
	result, err := segment.NewSplitter(segment.DefaultParams()).Split(buf)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if !result.Degenerate || result.Silent {
		t.Fatalf("expected degenerate non-silent result, got %+v", result)
	}
	if len(result.Segments) != 1 || result.Segments[0].Span.Len() != buf.Frames() {
		t.Fatalf("expected one whole-file segment, got %d", len(result.Segments))
	}
	assertTiles(t, buf, result)
}

func TestSplitTrimsLeadingAndTrailingGaps(t *testing.T) {
	buf := synth(part{5, 0}, part{20, 8000}, part{4, 0}, part{20, 8000}, part{6, 0})
	result, err := segment.NewSplitter(segment.Params{KeepSilence: 0}).Split(buf)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Segments[0].Start != 5*time.Second || result.Segments[1].End != 49*time.Second {
		t.Fatalf("unexpected bounds %s .. %s", result.Segments[0].Start, result.Segments[1].End)
	}
	if len(result.Gaps) != 3 {
		t.Fatalf("expected 3 gaps, got %d", len(result.Gaps))
	}
	assertTiles(t, buf, result)
}

func TestSplitKeepSilenceCappedAtHalfGap(t *testing.T) {
	buf := synth(part{20, 8000}, part{2, 0}, part{20, 8000})
	result, err := segment.NewSplitter(segment.Params{KeepSilence: 5 * time.Second}).Split(buf)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Segments[0].End != 21*time.Second || result.Segments[1].Start != 21*time.Second {
		t.Fatalf("expected segments to meet in the middle of the gap, got %s and %s", result.Segments[0].End, result.Segments[1].Start)
	}
	if len(result.Gaps) != 0 {
		t.Fatalf("expected gap to be fully consumed, got %v", result.Gaps)
	}
	assertTiles(t, buf, result)
}

func TestSplitThresholdIsRelativeToReference(t *testing.T) {
	// Quiet master with a noise floor 30 dB under the music: the floor is
	// above a -40 dB relative threshold, so nothing splits.
	noisy := synth(part{20, 1000}, part{3, 32}, part{20, 1000})
	result, err := segment.NewSplitter(segment.DefaultParams()).Split(noisy)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(result.Segments) != 1 || !result.Degenerate {
		t.Fatalf("expected no split above the relative threshold, got %d segments", len(result.Segments))
	}

	// The same gap 50 dB down qualifies even though the music itself is quiet.
	quiet := synth(part{20, 1000}, part{3, 3}, part{20, 1000})
	result, err = segment.NewSplitter(segment.DefaultParams()).Split(quiet)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected quiet master to split in two, got %d", len(result.Segments))
	}
}

func TestSplitAllSilence(t *testing.T) {
	buf := synth(part{10, 0})
	result, err := segment.NewSplitter(segment.DefaultParams()).Split(buf)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if !result.Silent || !result.Degenerate || len(result.Segments) != 1 {
		t.Fatalf("expected one silent degenerate segment, got %+v", result)
	}
}

func TestSplitEmptyAudioIsDecodeFailure(t *testing.T) {
	_, err := segment.NewSplitter(segment.DefaultParams()).Split(&pcm.Buffer{SampleRate: rate, Channels: 1})
	if !errors.Is(err, services.ErrDecodeFailure) {
		t.Fatalf("expected decode failure, got %v", err)
	}
}

func TestWholeAndAttach(t *testing.T) {
	buf := synth(part{300, 8000})
	parent := inputs.New(1, "/in/song.mp3", 100)
	seg := segment.Whole(parent, buf)
	if seg.Ordinal != 1 || seg.Start != 0 || seg.End != 300*time.Second || seg.Parent != parent {
		t.Fatalf("unexpected whole segment %+v", seg)
	}

	result, err := segment.NewSplitter(segment.DefaultParams()).Split(synth(part{20, 8000}, part{3, 0}, part{20, 8000}))
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	result.Attach(parent)
	for _, s := range result.Segments {
		if s.Parent != parent {
			t.Fatal("expected parent to be attached")
		}
	}
	result.Release()
	for _, s := range result.Segments {
		if s.Audio != nil {
			t.Fatal("expected audio views to be released")
		}
	}
}
