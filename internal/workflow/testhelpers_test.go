package workflow_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mixsplit/internal/config"
	"mixsplit/internal/identification"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/report"
	"mixsplit/internal/services"
	"mixsplit/internal/services/ffmpeg"
	"mixsplit/internal/tagging"
	"mixsplit/internal/testsupport"
	"mixsplit/internal/workflow"
)

const testRate = 8000

// part is one stretch of synthetic audio: a tone when loud, else silence.
type part struct {
	d    time.Duration
	loud bool
}

func tone(d time.Duration) part    { return part{d: d, loud: true} }
func silence(d time.Duration) part { return part{d: d} }

// synth renders parts as mono PCM at testRate.
func synth(parts ...part) *pcm.Buffer {
	var samples []int16
	for _, p := range parts {
		n := int(p.d.Seconds() * testRate)
		for i := 0; i < n; i++ {
			if p.loud {
				samples = append(samples, int16(8000*math.Sin(2*math.Pi*440*float64(i)/testRate)))
			} else {
				samples = append(samples, 0)
			}
		}
	}
	return &pcm.Buffer{SampleRate: testRate, Channels: 1, Samples: samples}
}

// fourTrackMix is 19.5 s: four 3 s tones split by three 2.5 s gaps.
func fourTrackMix() *pcm.Buffer {
	return synth(
		tone(3*time.Second), silence(2500*time.Millisecond),
		tone(3*time.Second), silence(2500*time.Millisecond),
		tone(3*time.Second), silence(2500*time.Millisecond),
		tone(3*time.Second),
	)
}

func shortTrack() *pcm.Buffer {
	return synth(tone(5 * time.Second))
}

// fakeDecoder renders a fresh buffer per call so released buffers from one
// batch never leak into another.
type fakeDecoder struct {
	mu     sync.Mutex
	audio  map[string]func() *pcm.Buffer
	fail   map[string]error
	calls  []string
	always func() *pcm.Buffer
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{audio: map[string]func() *pcm.Buffer{}, fail: map[string]error{}}
}

func (d *fakeDecoder) Decode(_ context.Context, path string) (*ffmpeg.Decoded, error) {
	d.mu.Lock()
	d.calls = append(d.calls, path)
	gen := d.audio[path]
	err := d.fail[path]
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if gen == nil {
		gen = d.always
	}
	if gen == nil {
		return nil, services.Wrap(services.ErrDecodeFailure, "decode", "fake", path, nil)
	}
	buf := gen()
	return &ffmpeg.Decoded{Audio: buf, Duration: buf.Duration(), Codec: "pcm_s16le"}, nil
}

// fakeExporter writes marker files instead of running ffmpeg.
type fakeExporter struct {
	mu         sync.Mutex
	exported   []string
	transcoded []string
}

func (e *fakeExporter) ExportFLAC(_ context.Context, buf *pcm.Buffer, dest string) error {
	e.mu.Lock()
	e.exported = append(e.exported, dest)
	e.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(fmt.Sprintf("frames=%d", buf.Frames())), 0o644)
}

func (e *fakeExporter) Transcode(_ context.Context, src, dest string) error {
	e.mu.Lock()
	e.transcoded = append(e.transcoded, dest)
	e.mu.Unlock()
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// fakeProvider answers through fn and records every sample it saw.
type fakeProvider struct {
	mu      sync.Mutex
	fn      func(identification.Sample) (identification.Match, error)
	samples []identification.Sample
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Identify(_ context.Context, sample identification.Sample) (identification.Match, error) {
	p.mu.Lock()
	p.samples = append(p.samples, sample)
	fn := p.fn
	p.mu.Unlock()
	if fn == nil {
		return identification.Match{}, nil
	}
	return fn(sample)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}

func matchFor(artist, title string) identification.Match {
	return identification.Match{
		Metadata:   identification.Metadata{Artist: artist, Title: title, Album: "Discovery"},
		Found:      true,
		Provider:   "fake",
		Confidence: 0.9,
	}
}

type taggedCall struct {
	path string
	tags tagging.Tags
}

type fakeTagger struct {
	mu    sync.Mutex
	err   error
	calls []taggedCall
}

func (t *fakeTagger) Tag(path string, tags tagging.Tags, _ *tagging.Artwork) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, taggedCall{path: path, tags: tags})
	return t.err
}

// brokenLibrary fails every placement with a destination write failure.
type brokenLibrary struct {
	mu       sync.Mutex
	attempts int
}

func (l *brokenLibrary) Exists(string) bool { return false }

func (l *brokenLibrary) Place(_ context.Context, _ string, rel string) (string, error) {
	l.mu.Lock()
	l.attempts++
	l.mu.Unlock()
	return "", services.Wrap(services.ErrDestinationWriteFailure, "organize", "move track", rel, os.ErrPermission)
}

type fixedMemory struct {
	bytes int64
	err   error
}

func (m fixedMemory) Available() (int64, error) { return m.bytes, m.err }

type recordingHistory struct {
	mu   sync.Mutex
	runs []*report.RunReport
}

func (h *recordingHistory) Save(_ context.Context, run *report.RunReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)
	return nil
}

// harness wires fakes around a test config.
type harness struct {
	cfg      *config.Config
	decoder  *fakeDecoder
	exporter *fakeExporter
	provider *fakeProvider
	tagger   *fakeTagger
	library  workflow.Library
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Split.MixThresholdSeconds = 10
	cfg.Identification.SampleSeconds = 8
	return &harness{
		cfg:      cfg,
		decoder:  newFakeDecoder(),
		exporter: &fakeExporter{},
		provider: &fakeProvider{},
		tagger:   &fakeTagger{},
	}
}

func (h *harness) collaborators() workflow.Collaborators {
	return workflow.Collaborators{
		Decoder:  h.decoder,
		Exporter: h.exporter,
		Provider: h.provider,
		Throttle: identification.NewThrottle(0),
		Tagger:   h.tagger,
		Library:  h.library,
	}
}

func (h *harness) executor(t *testing.T) *workflow.Executor {
	t.Helper()
	exec, err := workflow.NewExecutor(h.cfg, "run-test", h.collaborators(), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return exec
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

func failureKinds(failures []report.Failure) []services.FailureKind {
	kinds := make([]services.FailureKind, 0, len(failures))
	for _, f := range failures {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}
