package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"mixsplit/internal/identification"
	"mixsplit/internal/logging"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/segment"
	"mixsplit/internal/staging"
)

func TestArenaReleaseDropsEverything(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir(), RunID: "run"}
	dir, err := layout.CreateBatch(3)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_Track_01.flac"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	mem := newArena(layout, 3, logging.NewNop())
	freed := 0
	mem.freeOSMemory = func() { freed++ }

	buf := &pcm.Buffer{SampleRate: 8000, Channels: 1, Samples: make([]int16, 8000)}
	seg := &segment.TrackSegment{Ordinal: 1, Audio: buf.Slice(0, 4000)}
	sample := &identification.Sample{WAV: []byte("RIFF")}
	mem.holdBuffer(buf)
	mem.holdSegments([]*segment.TrackSegment{seg})
	mem.holdSample(sample)

	if got := mem.bytes(); got != 16000 {
		t.Fatalf("bytes = %d, want 16000", got)
	}

	mem.Release()
	mem.Release()

	if buf.Samples != nil || seg.Audio != nil || sample.WAV != nil {
		t.Fatal("references survived release")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("batch directory should be removed")
	}
	if freed != 1 {
		t.Fatalf("FreeOSMemory calls = %d, want 1", freed)
	}
	if mem.bytes() != 0 {
		t.Fatal("released arena still reports held bytes")
	}
}
