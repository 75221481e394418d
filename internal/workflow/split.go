package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mixsplit/internal/batching"
	"mixsplit/internal/identification"
	"mixsplit/internal/inputs"
	"mixsplit/internal/logging"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/report"
	"mixsplit/internal/segment"
	"mixsplit/internal/services"
	"mixsplit/internal/textutil"
)

// exportedTrack is a segment written to staging together with its
// identification sample.
type exportedTrack struct {
	parent  *inputs.InputFile
	segment *segment.TrackSegment
	path    string
	base    string
	sample  *identification.Sample
}

func (t *exportedTrack) outcome(status report.TrackStatus) report.TrackOutcome {
	return report.TrackOutcome{
		Parent:  t.parent.Path,
		Ordinal: t.segment.Ordinal,
		Status:  status,
		Start:   t.segment.Start,
		End:     t.segment.End,
	}
}

// mix reports whether the track was cut from a longer recording.
func (t *exportedTrack) mix() bool {
	return t.parent.Classification == inputs.Mix
}

// fileWork is the Split-Phase output for one input file.
type fileWork struct {
	split    report.FileSplit
	tracks   []*exportedTrack
	failures []report.Failure
	failed   int
}

func (w *fileWork) fail(path string, track int, err error) {
	w.failures = append(w.failures, report.NewFailure(path, track, err))
	w.failed++
}

// splitPhase decodes, classifies, splits and exports every file of batch.
// Files run in parallel up to split.workers; results are merged in file
// order so each file's tracks stay contiguous and in temporal order.
func (e *Executor) splitPhase(ctx context.Context, batch *batching.Batch, dir string, mem *arena, result *report.BatchResult) []*exportedTrack {
	ctx = services.WithStage(ctx, "split")
	work := make([]fileWork, batch.Len())
	workers(ctx, batch.Len(), e.cfg.Split.Workers, func(ctx context.Context, i int) {
		work[i] = e.splitFile(ctx, batch.Files[i], dir, mem)
	})

	var tracks []*exportedTrack
	for _, w := range work {
		result.Splits = append(result.Splits, w.split)
		result.Failures = append(result.Failures, w.failures...)
		result.Counts.Produced += w.split.Segments
		result.Counts.Failed += w.failed
		tracks = append(tracks, w.tracks...)
	}
	return tracks
}

func (e *Executor) splitFile(ctx context.Context, file *inputs.InputFile, dir string, mem *arena) fileWork {
	ctx = services.WithFile(ctx, file.Path)
	logger := logging.WithContext(ctx, e.splitLogger)
	w := fileWork{split: report.FileSplit{
		Path:           file.Path,
		Format:         file.Format,
		Size:           file.Size,
		Classification: file.Classification.String(),
	}}

	if err := ctx.Err(); err != nil {
		w.fail(file.Path, 0, err)
		return w
	}

	decoded, err := e.deps.Decoder.Decode(ctx, file.Path)
	if err != nil {
		logging.WarnWithContext(logger, "decode failed; file skipped", "decode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the file plays in ffprobe"),
			logging.String(logging.FieldImpact, "no tracks produced from this file"),
		)
		w.fail(file.Path, 0, err)
		return w
	}
	mem.holdBuffer(decoded.Audio)

	file.Duration = decoded.Duration
	if file.Duration <= 0 {
		file.Duration = decoded.Audio.Duration()
	}
	file.Classification = e.classifier.Classify(file.Duration)
	w.split.Duration = file.Duration
	w.split.Classification = file.Classification.String()

	var segs []*segment.TrackSegment
	if file.Classification == inputs.Mix {
		res, err := e.splitter.Split(decoded.Audio)
		if err != nil {
			logging.WarnWithContext(logger, "silence split failed; file skipped", "split_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "no tracks produced from this file"),
			)
			w.fail(file.Path, 0, err)
			return w
		}
		res.Attach(file)
		segs = res.Segments
		w.split.Gaps = len(res.Gaps)
		w.split.Degenerate = res.Degenerate
		w.split.Silent = res.Silent
		if res.Degenerate {
			logger.Info("mix has no qualifying silence gaps; delivered whole",
				logging.Duration("duration", file.Duration),
				logging.Bool("silent", res.Silent),
				logging.String(logging.FieldEventType, "mix_degenerate"),
			)
		}
	} else {
		segs = []*segment.TrackSegment{segment.Whole(file, decoded.Audio)}
	}
	mem.holdSegments(segs)
	w.split.Segments = len(segs)

	logger.Info("file split",
		logging.String("classification", w.split.Classification),
		logging.Duration("duration", file.Duration),
		logging.Int("segments", len(segs)),
		logging.String(logging.FieldEventType, "file_split"),
	)

	stem := textutil.SanitizeOr(file.Stem(), "track")
	for _, seg := range segs {
		base := fmt.Sprintf("%04d_%s_Track_%02d", file.Ordinal, stem, seg.Ordinal)
		track, err := e.exportSegment(services.WithTrack(ctx, seg.Ordinal), file, seg, dir, base)
		if err != nil {
			logging.WarnWithContext(logger, "track export failed", "export_failed",
				logging.Int(logging.FieldTrack, seg.Ordinal),
				logging.Error(err),
				logging.String(logging.FieldImpact, "track dropped from this run"),
			)
			w.fail(file.Path, seg.Ordinal, err)
			continue
		}
		mem.holdSample(track.sample)
		w.tracks = append(w.tracks, track)
	}
	return w
}

// exportSegment writes the segment as the intermediate FLAC and cuts the
// identification excerpt from its temporal middle.
func (e *Executor) exportSegment(ctx context.Context, file *inputs.InputFile, seg *segment.TrackSegment, dir, base string) (*exportedTrack, error) {
	trackPath := filepath.Join(dir, base+".flac")
	if err := e.deps.Exporter.ExportFLAC(ctx, seg.Audio, trackPath); err != nil {
		return nil, err
	}

	excerpt, offset := seg.Audio.Excerpt(e.cfg.SampleLength())
	wav, err := pcm.EncodeWAV(excerpt)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "split", "encode sample", base, err)
	}
	samplePath := filepath.Join(dir, "samples", base+".wav")
	if err := os.WriteFile(samplePath, wav, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "split", "write sample", samplePath, err)
	}

	return &exportedTrack{
		parent:  file,
		segment: seg,
		path:    trackPath,
		base:    base,
		sample: &identification.Sample{
			Parent:      file.Path,
			Ordinal:     seg.Ordinal,
			TrackPath:   trackPath,
			Path:        samplePath,
			WAV:         wav,
			Offset:      pcm.FramesToDuration(offset, excerpt.SampleRate),
			Duration:    excerpt.Duration(),
			SingleTrack: file.Classification == inputs.SingleTrack,
		},
	}, nil
}
