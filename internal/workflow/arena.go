package workflow

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"mixsplit/internal/identification"
	"mixsplit/internal/logging"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/segment"
	"mixsplit/internal/staging"
)

// arena owns everything a batch allocates between its Split-Phase and the end
// of its Identify/Tag-Phase. Release is idempotent and must run on every exit
// path of Executor.Run.
type arena struct {
	layout staging.Layout
	index  int
	logger *slog.Logger

	// freeOSMemory is replaced in tests.
	freeOSMemory func()

	mu       sync.Mutex
	buffers  []*pcm.Buffer
	segments []*segment.TrackSegment
	samples  []*identification.Sample
	released bool
}

func newArena(layout staging.Layout, index int, logger *slog.Logger) *arena {
	return &arena{layout: layout, index: index, logger: logger, freeOSMemory: debug.FreeOSMemory}
}

func (a *arena) holdBuffer(buf *pcm.Buffer) {
	a.mu.Lock()
	a.buffers = append(a.buffers, buf)
	a.mu.Unlock()
}

func (a *arena) holdSegments(segs []*segment.TrackSegment) {
	a.mu.Lock()
	a.segments = append(a.segments, segs...)
	a.mu.Unlock()
}

func (a *arena) holdSample(sample *identification.Sample) {
	a.mu.Lock()
	a.samples = append(a.samples, sample)
	a.mu.Unlock()
}

// bytes reports the decoded audio currently held.
func (a *arena) bytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, buf := range a.buffers {
		total += buf.Bytes()
	}
	return total
}

// Release drops every held reference, removes the batch staging directory
// and returns freed heap to the operating system.
func (a *arena) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	var held int64
	for _, buf := range a.buffers {
		held += buf.Bytes()
		buf.Release()
	}
	for _, seg := range a.segments {
		seg.Audio = nil
	}
	for _, sample := range a.samples {
		sample.WAV = nil
	}
	a.buffers, a.segments, a.samples = nil, nil, nil
	a.mu.Unlock()

	if err := a.layout.RemoveBatch(a.index); err != nil {
		logging.WarnWithContext(a.logger, "failed to remove batch staging directory", "staging_cleanup_failed",
			logging.String("path", a.layout.BatchDir(a.index)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			logging.String(logging.FieldImpact, "intermediates remain until stale cleanup"),
		)
	}
	if a.freeOSMemory != nil {
		a.freeOSMemory()
	}
	a.logger.Debug("batch resources released",
		logging.Int64("decoded_bytes", held),
		logging.String(logging.FieldEventType, "batch_released"),
	)
}
