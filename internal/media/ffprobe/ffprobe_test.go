package ffprobe

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", Channels: 2, SampleRate: "44100", Index: 1},
			{CodecType: "audio", Channels: 6, SampleRate: "48000", Index: 2},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
			Tags:     map[string]string{"TITLE": " Live Set "},
		},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	primary, err := result.PrimaryAudio()
	if err != nil {
		t.Fatalf("PrimaryAudio: %v", err)
	}
	if primary.Index != 2 || primary.SampleRateHz() != 48000 {
		t.Fatalf("unexpected primary stream: %+v", primary)
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.Duration() != 123450*time.Millisecond {
		t.Fatalf("unexpected duration: %v", result.Duration())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
	if result.Tag("title") != "Live Set" {
		t.Fatalf("unexpected tag: %q", result.Tag("title"))
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.Duration() != 0 {
		t.Fatalf("expected zero duration, got %v", result.Duration())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestPrimaryAudioMissing(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video"}}}
	if _, err := result.PrimaryAudio(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestParseFallsBackToStreamDuration(t *testing.T) {
	payload := []byte(`{"streams":[{"index":0,"codec_type":"audio","codec_name":"opus","duration":"61.5","sample_rate":"48000","channels":2}],"format":{"format_name":"ogg"}}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.DurationSeconds() != 61.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}
