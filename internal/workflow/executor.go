package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mixsplit/internal/batching"
	"mixsplit/internal/config"
	"mixsplit/internal/identification"
	"mixsplit/internal/logging"
	"mixsplit/internal/organizer"
	"mixsplit/internal/report"
	"mixsplit/internal/segment"
	"mixsplit/internal/services"
	"mixsplit/internal/services/ffmpeg"
	"mixsplit/internal/services/itunes"
	"mixsplit/internal/services/opus"
	"mixsplit/internal/staging"
	"mixsplit/internal/tagging"
)

// Executor runs one batch through the Split-Phase and the Identify/Tag-Phase.
// A single executor serves a whole run so the identification throttle spans
// batch boundaries.
type Executor struct {
	cfg        *config.Config
	layout     staging.Layout
	logger     *slog.Logger
	classifier segment.Classifier
	splitter   segment.Splitter
	deps       Collaborators

	// Phase loggers honour logging.stage_overrides.
	splitLogger    *slog.Logger
	identifyLogger *slog.Logger

	// newArena is replaced in tests.
	newArena func(index int) *arena
}

// NewExecutor builds an executor for a run. Collaborators left nil are built
// from cfg.
func NewExecutor(cfg *config.Config, runID string, deps Collaborators, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Decoder == nil {
		decoder := ffmpeg.NewDecoder(cfg.FFmpegBinary(), cfg.FFprobeBinary(), time.Duration(cfg.Workflow.DecodeTimeoutSeconds)*time.Second)
		decoder.Native = map[string]ffmpeg.NativeDecoder{"opus": opus.NewDecoder()}
		decoder.Logger = logging.NewComponentLogger(logger, "decoder")
		deps.Decoder = decoder
	}
	if deps.Exporter == nil {
		deps.Exporter = ffmpeg.NewExporter(cfg.FFmpegBinary(), cfg.Library.MP3Bitrate)
	}
	if deps.Provider == nil {
		provider, err := identification.Select(cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.Provider = provider
	}
	if deps.Throttle == nil {
		deps.Throttle = identification.NewThrottle(cfg.IdentificationInterval())
	}
	if deps.Artwork == nil && cfg.Artwork.Enabled {
		var searcher tagging.SongSearcher
		if cfg.Artwork.ITunesEnabled {
			searcher = itunes.New(cfg.Artwork.ITunesBaseURL)
		}
		deps.Artwork = tagging.NewFetcher(cfg.Artwork.Size, time.Duration(cfg.Artwork.TimeoutSeconds)*time.Second, searcher, cfg.Artwork.PageScrape, logger)
	}
	if deps.Tagger == nil {
		deps.Tagger = tagging.NewTagger()
	}
	if deps.Library == nil {
		library := organizer.New(cfg.Paths.LibraryDir, logger)
		if cfg.Library.SkipExisting {
			if err := library.BuildIndex(); err != nil {
				return nil, err
			}
		}
		deps.Library = library
	}

	params := segment.Params{
		MinSilence:  time.Duration(cfg.Split.MinSilenceMS) * time.Millisecond,
		ThresholdDB: cfg.Split.SilenceThresholdDB,
		Window:      time.Duration(cfg.Split.WindowMS) * time.Millisecond,
		KeepSilence: time.Duration(cfg.Split.KeepSilenceMS) * time.Millisecond,
	}
	ex := &Executor{
		cfg:        cfg,
		layout:     staging.Layout{Root: cfg.Paths.StagingDir, RunID: runID},
		logger:     logging.NewComponentLogger(logger, "executor"),
		classifier: segment.NewClassifier(cfg.MixThreshold()),
		splitter:   segment.NewSplitter(params),
		deps:       deps,

		splitLogger:    logging.ForStage(logger, "split", cfg.Logging.StageOverrides),
		identifyLogger: logging.ForStage(logger, "identify", cfg.Logging.StageOverrides),
	}
	ex.newArena = func(index int) *arena {
		return newArena(ex.layout, index, ex.logger)
	}
	return ex, nil
}

// Layout returns the staging layout of the run.
func (e *Executor) Layout() staging.Layout {
	return e.layout
}

// Run executes both phases for batch and returns its result. The batch
// arena is released before Run returns, whatever the outcome.
func (e *Executor) Run(ctx context.Context, batch *batching.Batch) report.BatchResult {
	started := time.Now()
	ctx = services.WithBatch(ctx, batch.Index)
	logger := logging.WithContext(ctx, e.logger)

	result := report.BatchResult{
		Index:     batch.Index,
		Files:     batch.Len(),
		Estimate:  batch.Total,
		Oversized: batch.Oversized,
	}

	mem := e.newArena(batch.Index)
	defer mem.Release()

	logger.Info("batch started",
		logging.Int("files", batch.Len()),
		logging.Int64("estimate_bytes", batch.Total),
		logging.Bool("oversized", batch.Oversized),
		logging.String(logging.FieldEventType, "batch_started"),
	)

	dir, err := e.layout.CreateBatch(batch.Index)
	if err != nil {
		for _, file := range batch.Files {
			result.Failures = append(result.Failures, report.NewFailure(file.Path, 0, err))
			result.Counts.Failed++
		}
		result.Fatal = true
		result.Elapsed = time.Since(started)
		batch.MarkAborted()
		return result
	}

	split := e.splitPhase(ctx, batch, dir, mem, &result)
	logger.Info("split phase complete",
		logging.Int("tracks", len(split)),
		logging.Int64("decoded_bytes", mem.bytes()),
		logging.String(logging.FieldEventType, "split_phase_complete"),
	)

	if ctx.Err() == nil {
		e.identifyPhase(ctx, split, dir, &result)
	} else {
		for _, track := range split {
			e.abandon(&result, track, ctx.Err())
		}
	}

	result.Elapsed = time.Since(started)
	if result.Fatal {
		batch.MarkAborted()
	} else {
		batch.MarkCompleted()
	}
	logger.Info("batch finished",
		logging.Int("produced", result.Counts.Produced),
		logging.Int("identified", result.Counts.Identified),
		logging.Int("unidentified", result.Counts.Unidentified),
		logging.Int("skipped", result.Counts.Skipped),
		logging.Int("failed", result.Counts.Failed),
		logging.Bool("fatal", result.Fatal),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "batch_finished"),
	)
	return result
}

// abandon records a track that never reached the Identify/Tag-Phase or was
// cut off by cancellation.
func (e *Executor) abandon(result *report.BatchResult, track *exportedTrack, cause error) {
	result.Counts.Failed++
	result.Failures = append(result.Failures, report.NewFailure(track.parent.Path, track.segment.Ordinal, cause))
	result.Outcomes = append(result.Outcomes, track.outcome(report.TrackFailed))
}

// workers runs fn for indices [0, n) with at most limit goroutines.
func workers(ctx context.Context, n, limit int, fn func(ctx context.Context, i int)) {
	if limit <= 0 {
		limit = 1
	}
	if limit > n {
		limit = n
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(limit)
	for w := 0; w < limit; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(ctx, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
