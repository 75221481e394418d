package workflow

import (
	"context"

	"mixsplit/internal/identification"
	"mixsplit/internal/media/pcm"
	"mixsplit/internal/services/ffmpeg"
	"mixsplit/internal/tagging"
)

// Decoder turns an input recording into PCM with its duration.
type Decoder interface {
	Decode(ctx context.Context, path string) (*ffmpeg.Decoded, error)
}

// Exporter writes intermediate tracks and output encodings.
type Exporter interface {
	ExportFLAC(ctx context.Context, buf *pcm.Buffer, dest string) error
	Transcode(ctx context.Context, src, dest string) error
}

// Tagger writes metadata and artwork into a track file.
type Tagger interface {
	Tag(path string, tags tagging.Tags, art *tagging.Artwork) error
}

// ArtworkSource completes metadata and resolves cover art. Both calls are
// best effort.
type ArtworkSource interface {
	Enrich(ctx context.Context, md identification.Metadata) identification.Metadata
	Fetch(ctx context.Context, md identification.Metadata) *tagging.Artwork
}

// Library is the output tree.
type Library interface {
	Exists(rel string) bool
	Place(ctx context.Context, src, rel string) (string, error)
}

// Collaborators bundles the external pieces the executor drives. Nil fields
// are filled from configuration by NewExecutor.
type Collaborators struct {
	Decoder  Decoder
	Exporter Exporter
	Provider identification.Provider
	Throttle *identification.Throttle
	Artwork  ArtworkSource
	Tagger   Tagger
	Library  Library
}
