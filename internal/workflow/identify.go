package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"mixsplit/internal/identification"
	"mixsplit/internal/logging"
	"mixsplit/internal/organizer"
	"mixsplit/internal/report"
	"mixsplit/internal/services"
	"mixsplit/internal/tagging"
)

// errBatchHalted is recorded for tracks left unprocessed after a destination
// write failure stopped the batch.
var errBatchHalted = services.Wrap(services.ErrDestinationWriteFailure, "identify", "halt", "batch halted before track was placed", nil)

// trackResult is the Identify/Tag-Phase output for one track. done is false
// when the track was never processed because the phase was cancelled.
type trackResult struct {
	outcome  report.TrackOutcome
	failures []report.Failure
	fatal    bool
	done     bool
}

func (r *trackResult) fail(track *exportedTrack, err error) {
	r.failures = append(r.failures, report.NewFailure(track.parent.Path, track.segment.Ordinal, err))
}

// identifyPhase identifies, tags and places every exported track. Workers
// share the executor's throttle, so identification call starts stay spaced
// by the configured interval regardless of worker count. A destination
// write failure cancels the remaining tracks.
func (e *Executor) identifyPhase(ctx context.Context, tracks []*exportedTrack, dir string, result *report.BatchResult) {
	ctx = services.WithStage(ctx, "identify")
	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]trackResult, len(tracks))
	workers(phaseCtx, len(tracks), e.cfg.Identification.Workers, func(ctx context.Context, i int) {
		if ctx.Err() != nil {
			return
		}
		results[i] = e.processTrack(ctx, tracks[i], dir)
		if results[i].fatal {
			cancel()
		}
	})

	for _, r := range results {
		if r.fatal {
			result.Fatal = true
		}
	}
	cause := ctx.Err()
	if result.Fatal || cause == nil {
		cause = errBatchHalted
	}
	for i, r := range results {
		if !r.done {
			e.abandon(result, tracks[i], cause)
			continue
		}
		result.Counts.Count(r.outcome.Status)
		result.Outcomes = append(result.Outcomes, r.outcome)
		result.Failures = append(result.Failures, r.failures...)
	}
}

func (e *Executor) processTrack(ctx context.Context, track *exportedTrack, dir string) trackResult {
	ctx = services.WithTrack(services.WithFile(ctx, track.parent.Path), track.segment.Ordinal)
	logger := logging.WithContext(ctx, e.identifyLogger)
	r := trackResult{outcome: track.outcome(report.TrackUnidentified)}

	var match identification.Match
	err := e.deps.Throttle.Do(ctx, func(ctx context.Context) error {
		m, err := e.deps.Provider.Identify(ctx, *track.sample)
		if err != nil {
			return err
		}
		match = m
		return nil
	})
	if ctx.Err() != nil {
		return trackResult{}
	}
	if err != nil {
		if !errors.Is(err, services.ErrIdentificationFailure) {
			err = services.Wrap(services.ErrIdentificationFailure, "identify", e.deps.Provider.Name(), "", err)
		}
		logging.WarnWithContext(logger, "identification failed; track kept as unidentified", "identify_failed",
			logging.String("provider", e.deps.Provider.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check provider credentials and quota"),
		)
		r.fail(track, err)
		match = identification.Match{}
	}

	ext := "." + e.cfg.Library.OutputFormat
	if match.Found && match.Complete() {
		e.deliverIdentified(ctx, logger, track, match, dir, ext, &r)
	} else {
		logger.Info("no match; track delivered as unidentified",
			logging.String(logging.FieldEventType, "track_unidentified"),
		)
		e.deliver(ctx, logger, track, dir, ext, organizer.UnidentifiedPath(track.parent.Stem(), track.segment.Ordinal, ext), nil, &r)
	}
	return r
}

func (e *Executor) deliverIdentified(ctx context.Context, logger *slog.Logger, track *exportedTrack, match identification.Match, dir, ext string, r *trackResult) {
	md := match.Metadata
	if e.cfg.Library.NormalizeArtists {
		md.Artist, md.Title = tagging.NormalizeCase(md.Artist), tagging.NormalizeCase(md.Title)
		md.Artist, md.Title = tagging.NormalizeArtist(md.Artist, md.Title)
	}
	r.outcome.Status = report.TrackIdentified
	r.outcome.Provider = match.Provider
	r.outcome.Confidence = match.Confidence
	r.outcome.Metadata = md

	rel := organizer.IdentifiedPath(md.Artist, md.Title, ext)
	if e.cfg.Library.SkipExisting && e.deps.Library.Exists(rel) {
		logger.Info("track already in library; skipped",
			logging.String("path", rel),
			logging.String(logging.FieldEventType, "track_skipped"),
		)
		r.outcome.Status = report.TrackSkipped
		r.done = true
		return
	}

	var art *tagging.Artwork
	if e.deps.Artwork != nil {
		md = e.deps.Artwork.Enrich(ctx, md)
		art = e.deps.Artwork.Fetch(ctx, md)
		r.outcome.Metadata = md
	}
	tags := tagging.Tags{Metadata: md}
	if track.mix() {
		tags.TrackNumber = track.segment.Ordinal
		tags.Comment = "Split from " + filepath.Base(track.parent.Path)
	}
	e.deliver(ctx, logger, track, dir, ext, rel, &deliveryTags{tags: tags, art: art}, r)
	if r.outcome.Status != report.TrackFailed {
		logger.Info("track identified",
			logging.String("artist", md.Artist),
			logging.String("title", md.Title),
			logging.String("provider", match.Provider),
			logging.Float64("confidence", match.Confidence),
			logging.String(logging.FieldEventType, "track_identified"),
		)
	}
}

type deliveryTags struct {
	tags tagging.Tags
	art  *tagging.Artwork
}

// deliver encodes the output file, tags it when tags is non-nil, and places
// it at rel in the library. A tag failure leaves the track untagged; a
// placement failure fails the track and, for destination errors, the batch.
func (e *Executor) deliver(ctx context.Context, logger *slog.Logger, track *exportedTrack, dir, ext, rel string, tags *deliveryTags, r *trackResult) {
	src := track.path
	if ext != ".flac" {
		src = filepath.Join(dir, track.base+ext)
		if err := e.deps.Exporter.Transcode(ctx, track.path, src); err != nil {
			if ctx.Err() != nil {
				*r = trackResult{}
				return
			}
			logging.WarnWithContext(logger, "output encode failed", "encode_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "track not delivered"),
			)
			r.fail(track, err)
			r.outcome.Status = report.TrackFailed
			r.done = true
			return
		}
	}

	if tags != nil {
		if err := e.deps.Tagger.Tag(src, tags.tags, tags.art); err != nil {
			logging.WarnWithContext(logger, "tag write failed; delivering untagged", "tag_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "track delivered without tags"),
			)
			r.fail(track, err)
		} else {
			r.outcome.Tagged = true
		}
	}

	if ctx.Err() != nil {
		*r = trackResult{}
		return
	}
	target, err := e.deps.Library.Place(ctx, src, rel)
	r.done = true
	if err != nil {
		r.fail(track, err)
		r.outcome.Status = report.TrackFailed
		r.outcome.Tagged = false
		if services.IsFatal(err) {
			r.fatal = true
			logging.ErrorWithContext(logger, "library is not writable; halting batch", "destination_failed",
				logging.String("path", rel),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check library_dir permissions and free space"),
				logging.String(logging.FieldImpact, "remaining tracks and batches are not processed"),
			)
			return
		}
		logging.WarnWithContext(logger, "track placement failed", "place_failed",
			logging.String("path", rel),
			logging.Error(err),
		)
		return
	}
	r.outcome.OutputPath = target
}
